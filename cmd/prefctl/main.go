// Command prefctl inspects and edits the preference record a lamp controller
// keeps on its non-volatile medium.
package main

import (
	"os"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
