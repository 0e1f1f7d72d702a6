package main

import (
	"os"

	"github.com/arief/naia/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
