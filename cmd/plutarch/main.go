// Package main provides the plutarch command: the Discord bot with its web
// server, plus terminal tools for recorded sessions, transcription, and the
// Arc Raiders stash.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}
