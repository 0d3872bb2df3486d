package main

import (
	"os"

	"alpharia-assessment/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
