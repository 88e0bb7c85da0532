// Command tracker serves the expense tracker UI and manages expenses from
// the command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
