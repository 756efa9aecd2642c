// Package main is the entry point for the mnemo CLI, a collaborator
// for inspecting and managing the memory store the proxy writes to.
package main

import (
	"fmt"
	"os"

	"github.com/mnemohq/mnemo/cmd/mnemo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
