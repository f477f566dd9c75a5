package main

import (
	"os"

	"github.com/openclaw/eventmind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
