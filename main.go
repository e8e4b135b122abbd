// Package main is the entry point for the data portal CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Gyangu/data-portal-sub002/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
