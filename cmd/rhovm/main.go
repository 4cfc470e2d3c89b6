// rhovm runs, assembles and disassembles Rholang bytecode modules.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
