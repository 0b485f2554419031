// Command sitectl is the command line client for the siteserver admin API.
package main

import (
	"fmt"
	"os"

	"github.com/psantana5/agencysite/cmd/sitectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
