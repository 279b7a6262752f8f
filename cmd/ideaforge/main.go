package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/danielpatrickdp/idea-forge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
