package main

import (
	"os"

	"github.com/coursepilot/coursepilot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
