package main

import (
	"os"

	"github.com/marhthing/pipebot/cmd/pipebot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
