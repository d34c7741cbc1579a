package main

import (
	"os"

	"github.com/howell-aikit/ideaforge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
