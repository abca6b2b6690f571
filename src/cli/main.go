package main

import (
	"os"

	"github.com/joeycumines/go-release-action/src/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
