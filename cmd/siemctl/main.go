package main

import (
	"os"

	"github.com/gregoryhugaerts/mini-siem/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
