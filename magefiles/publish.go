//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/sh"
)

// devRelease is the GitHub release that publishDev overwrites.
const devRelease = "dev"

// publishTargets are the GOOS/GOARCH pairs shipped to the dev release.
var publishTargets = [][2]string{
	{"linux", "amd64"},
	{"linux", "arm64"},
}

// crossEnv holds the cgo toolchain settings for non-native GOARCH values.
var crossEnv = map[string]map[string]string{
	"arm64": {
		"CC":              "aarch64-linux-gnu-gcc",
		"PKG_CONFIG_PATH": "/usr/lib/aarch64-linux-gnu/pkgconfig",
	},
}

// PublishDev cross-compiles release archives into dist/ and uploads them
// to the dev release. PUBLISH_TOKEN must hold a token with release write
// access.
func PublishDev() error {
	token := os.Getenv("PUBLISH_TOKEN")
	if token == "" {
		return errors.New("PUBLISH_TOKEN is not set")
	}
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return err
	}

	var archives []string
	for _, t := range publishTargets {
		archive, err := buildArchive(t[0], t[1])
		if err != nil {
			return err
		}
		archives = append(archives, archive)
	}

	args := append([]string{"release", "upload", devRelease, "--clobber"}, archives...)
	return sh.RunWithV(map[string]string{"GH_TOKEN": token}, "gh", args...)
}

// buildArchive builds plutarch for goos/goarch and packs it as
// dist/plutarch_<goos>_<goarch>.tar.gz.
func buildArchive(goos, goarch string) (string, error) {
	name := fmt.Sprintf("%s_%s_%s", binaryName, goos, goarch)
	stage := filepath.Join(distDir, name)
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return "", err
	}

	env := map[string]string{"GOOS": goos, "GOARCH": goarch, "CGO_ENABLED": "1"}
	for k, v := range crossEnv[goarch] {
		env[k] = v
	}
	bin := filepath.Join(stage, binaryName)
	if err := sh.RunWithV(env, binGo, "build", "-tags", buildTags, "-ldflags", ldflags(), "-o", bin, cmdDir); err != nil {
		return "", fmt.Errorf("build %s/%s: %w", goos, goarch, err)
	}

	archive := stage + ".tar.gz"
	if err := sh.RunV("tar", "-czf", archive, "-C", distDir, name); err != nil {
		return "", fmt.Errorf("archive %s: %w", name, err)
	}
	return archive, nil
}
