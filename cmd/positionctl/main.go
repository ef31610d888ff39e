// Command positionctl starts, stops and inspects the position manager and
// toggles its emergency stop through the shared configuration file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
