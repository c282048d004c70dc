// Package main is the entry point for the Lattice CLI.
package main

import (
	"fmt"
	"os"

	"github.com/lattice-lang/lattice/cmd/lattice/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
