// Command sentimentctl runs sentiment maintenance jobs against the configured
// database without starting the HTTP server.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
