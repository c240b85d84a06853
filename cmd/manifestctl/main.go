// Command manifestctl analyzes, corrects and fixes manifests from the
// command line using the same pipeline as the HTTP server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(&app{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
