package main

import (
	"os"

	"github.com/rahul/pcagent/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
