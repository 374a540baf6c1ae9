package main

import (
	"os"

	"github.com/debemdeboas/kable/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
