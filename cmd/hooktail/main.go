package main

import (
	"os"

	"github.com/hooktail-systems/hooktail/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
