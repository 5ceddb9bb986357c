package main

import (
	"os"

	"github.com/BenjaminSRussell/crawlaudit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
