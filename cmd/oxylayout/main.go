// Command oxylayout prints the packed memory layout, binding assignment and pool sizing of
// resource sets declared in YAML or TOML files, and can verify them against the host backend.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCommand(logrus.StandardLogger()).Execute(); err != nil {
		os.Exit(1)
	}
}
