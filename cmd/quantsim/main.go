package main

import (
	"os"

	"quantsim/cmd/quantsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
