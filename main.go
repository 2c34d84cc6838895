package main

import (
	"os"

	"github.com/krau/taggerapi/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
