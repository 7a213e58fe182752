package main

import (
	"os"

	"github.com/openlets/openlets/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
