package main

import (
	"os"

	"github.com/machinewire/mcpchat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
