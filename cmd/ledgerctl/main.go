package main

import (
	"os"

	"github.com/cacao-collective/bookkeeper/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
