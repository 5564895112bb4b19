// Package main provides the entry point for the ahnlich-db server CLI.
package main

import (
	"os"

	"github.com/ahnlich/ahnlich-db/cmd/ahnlich-db/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
