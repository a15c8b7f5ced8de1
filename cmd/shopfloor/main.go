package main

import (
	"os"

	"github.com/Additional-Code/shopfloor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
