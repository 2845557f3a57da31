package main

import (
	"os"

	"github.com/buemura/redirhunt/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
