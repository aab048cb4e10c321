package main

import (
	"os"

	"github.com/transitionlab/fleetpath/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
