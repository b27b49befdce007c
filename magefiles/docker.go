//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/sh"
)

// Container image constants.
const (
	dockerImageName = "plutarch"
	dockerImageTag  = "latest"
	dockerfile      = "Dockerfile"
)

// containerRuntime returns "podman" or "docker" if a working runtime
// is available, or "" if neither is usable. It checks both that the
// binary exists on PATH and that it can connect to its daemon/machine.
func containerRuntime() string {
	for _, name := range []string{"podman", "docker"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		if exec.Command(name, "info").Run() != nil {
			fmt.Fprintf(os.Stderr, "WARNING: %s found on PATH but not usable (is the daemon/machine running?)\n", name)
			continue
		}
		return name
	}
	return ""
}

// imageRef returns the full image reference (name:tag).
func imageRef() string {
	return dockerImageName + ":" + dockerImageTag
}

// Docker builds the container image from the repo root Dockerfile.
func Docker() error {
	rt := containerRuntime()
	if rt == "" {
		return fmt.Errorf("no container runtime found (install podman or docker)")
	}
	return sh.RunV(rt, "build", "--build-arg", "VERSION="+version(), "-t", imageRef(), "-f", dockerfile, ".")
}
