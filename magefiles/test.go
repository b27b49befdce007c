//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// coverThreshold is the minimum total statement coverage for test:cover.
const coverThreshold = 60.0

const coverProfile = "coverage.out"

// Test groups test targets (all, unit, cover).
type Test mg.Namespace

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs the tests with the race detector in short mode.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-race", "-short", "./internal/...", "./pkg/...", "./cmd/...")
}

// Cover runs the tests with a coverage profile and fails when total
// coverage is below coverThreshold.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverProfile, "./internal/...", "./pkg/..."); err != nil {
		return err
	}
	out, err := sh.Output(binGo, "tool", "cover", "-func="+coverProfile)
	if err != nil {
		return err
	}
	total, err := totalCoverage(out)
	if err != nil {
		return err
	}
	fmt.Printf("total coverage: %.1f%% (threshold %.0f%%)\n", total, coverThreshold)
	if total < coverThreshold {
		return fmt.Errorf("coverage %.1f%% is below %.0f%%", total, coverThreshold)
	}
	return nil
}

// totalCoverage reads the percentage from the "total:" line of
// go tool cover -func output.
func totalCoverage(report string) (float64, error) {
	for line := range strings.SplitSeq(report, "\n") {
		if !strings.HasPrefix(line, "total:") {
			continue
		}
		fields := strings.Fields(line)
		pct := strings.TrimSuffix(fields[len(fields)-1], "%")
		return strconv.ParseFloat(pct, 64)
	}
	return 0, fmt.Errorf("no total line in coverage report")
}
