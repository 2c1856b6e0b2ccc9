/*
Package main provides the CLI entry point for Publisher.
*/
package main

import (
	"os"

	"github.com/oarkflow/publisher/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
