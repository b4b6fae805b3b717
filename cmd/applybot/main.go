package main

import (
	"fmt"
	"os"

	"github.com/alanmeadows/applybot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "applybot:", err)
		os.Exit(1)
	}
}
