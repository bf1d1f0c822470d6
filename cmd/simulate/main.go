// Command simulate runs one seat-booking simulation in-process and prints
// the final report as JSON.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
