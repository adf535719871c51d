// Command quantize runs the external quantization tool for a model, or
// prints a simulated report when no usable GPU is found.
package main

import (
	"os"

	"modelkit/internal/cli"
)

func main() {
	os.Exit(cli.QuantizeMain(os.Args[1:], cli.Env{}))
}
