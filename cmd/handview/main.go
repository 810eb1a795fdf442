// handview serves the hand gesture recognition page and its static assets.
package main

import (
	"os"

	"github.com/0xReLogic/handview/cmd/handview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
