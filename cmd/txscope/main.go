package main

import (
	"os"

	"github.com/marcodd23/go-txscope/cmd/txscope/command"
)

func main() {
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
