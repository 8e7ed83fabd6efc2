// Package main provides the entry point for the obby CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Knuckles92/obby-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
