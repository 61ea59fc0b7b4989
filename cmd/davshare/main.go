package main

import (
	"os"

	"github.com/davshare/davshare/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
