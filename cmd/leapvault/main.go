// Package main provides the leapvault CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapvault/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
