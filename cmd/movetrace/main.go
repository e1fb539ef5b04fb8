package main

import (
	"os"

	"github.com/movetrace/movetrace/cmd/movetrace/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
