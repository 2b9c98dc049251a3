// Command oxydemo animates a camera resource set through the frame-in-flight cycle, either
// headless on the host backend or in a window on the WebGPU backend.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.WithError(err).Error("[oxydemo] exited with error")
		os.Exit(1)
	}
}
