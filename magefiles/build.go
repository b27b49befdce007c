//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// externalTools are the programs the bot shells out to at runtime.
var externalTools = []string{"ffmpeg", "yt-dlp", "whisper"}

// version returns the version stamped into binaries: $VERSION, else the
// short commit hash, else "dev".
func version() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	if out, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && out != "" {
		return out
	}
	return "dev"
}

func ldflags() string {
	return "-s -w -X main.version=" + version()
}

// buildTags drops the libopusfile half of the opus binding; only the
// encoder and decoder are linked.
const buildTags = "nolibopusfile"

// Build compiles the plutarch binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-tags", buildTags, "-ldflags", ldflags(), "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// InstallReqs downloads Go modules and reports missing external tools.
// Missing tools are a warning: the bot runs without them and disables the
// features that need them.
func InstallReqs() error {
	if err := sh.RunV(binGo, "mod", "download"); err != nil {
		return err
	}
	var missing []string
	for _, tool := range externalTools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "WARNING: not on PATH: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

// Clean removes build artifacts.
func Clean() error {
	for _, dir := range []string{binaryDir, distDir} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
