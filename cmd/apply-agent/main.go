// Package main provides the entry point for the apply agent CLI.
package main

import (
	"fmt"
	"os"

	"jobmate/apply-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
