package main

import (
	"os"

	"github.com/majorcontext/interpose/cmd/kickstart-trace/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
