package main

import (
	"fmt"
	"os"
)

func main() {
	var exitCode int
	root := NewRootCmd(&exitCode)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
