// Command legocoder serves the LEGO Coder block-programming environment and
// generates programs from the command line.
package main

import (
	"os"

	"github.com/livetemplate/legocoder/cmd/legocoder/commands"
)

func main() {
	os.Exit(commands.Main())
}
