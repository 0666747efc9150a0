package main

import (
	"os"

	"github.com/pgweave/pgweave/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
