// splatview renders procedural Gaussian splat clouds, either in a window
// on the GPU or offscreen through the CPU pipeline.
package main

import (
	"os"

	"github.com/splat3d/splatrt/cmd/splatview/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
