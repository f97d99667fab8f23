// Package main is the entry point for the mojocode agent service.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mojocode:", err)
		os.Exit(1)
	}
}
