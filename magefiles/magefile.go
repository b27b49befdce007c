//go:build mage

// Package main provides build targets for the plutarch project using Mage.
//
// Usage:
//
//	mage build          Compile plutarch binary to bin/
//	mage installReqs    Download modules and check ffmpeg, yt-dlp, whisper
//	mage test:all       Run all tests
//	mage test:unit      Run tests with the race detector, skipping long ones
//	mage test:cover     Run tests and enforce the coverage threshold
//	mage lint           Check gofmt, then run golangci-lint
//	mage publishDev     Build release archives and upload them to the dev release
//	mage docker         Build the container image
//	mage clean          Remove build artifacts
//	mage install        Install plutarch to GOPATH/bin
//	mage stats          Print Go line counts per package
package main

const (
	binGo      = "go"
	binaryName = "plutarch"
	binaryDir  = "bin"
	distDir    = "dist"
	cmdDir     = "./cmd/plutarch"
)
