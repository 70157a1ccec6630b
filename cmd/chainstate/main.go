// Command chainstate runs the chain state service and inspects stored
// chain snapshots.
package main

import (
	"os"
)

var exitFunc = os.Exit

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		verbose, _ := root.PersistentFlags().GetBool("verbose")
		_ = newErrorHandler(os.Stderr, verbose).Handle(err)
		exitFunc(1)
	}
}
