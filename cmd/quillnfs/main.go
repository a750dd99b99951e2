package main

import (
	"os"

	"github.com/quillfs/quillnfs/cmd/quillnfs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
