// DIMA - direct-infusion mass spectrometry library matching
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/DIMA/cmd/dima/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
