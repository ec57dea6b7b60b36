package main

import (
	"os"

	"github.com/vocdoni/zkvote-node/cmd/zkvote-cli/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
