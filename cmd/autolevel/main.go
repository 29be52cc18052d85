package main

import (
	"os"

	"github.com/rustyeddy/autolevel/cmd/autolevel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
