// Command stratum validates hierarchy schemas, prints write orders and
// migrates SQL databases to the tables of a schema.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "stratum:", err)
		os.Exit(1)
	}
}
