// Package main is the entry point for bluebird.
package main

import (
	"os"

	"github.com/dshills/bluebird/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
