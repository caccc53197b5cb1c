package main

import (
	"os"

	bouncmder "github.com/papercomputeco/bounder/cmd/bounder"
)

func main() {
	cmd := bouncmder.NewBounderCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
