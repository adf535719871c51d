// Command router routes a prompt to a local model entry or the remote
// chat-completions API and prints the result.
package main

import (
	"os"

	"modelkit/internal/cli"
)

func main() {
	os.Exit(cli.RouterMain(os.Args[1:], cli.Env{}))
}
