package main

import (
	"os"

	"github.com/paw-chain/merit/cmd/meritd/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
