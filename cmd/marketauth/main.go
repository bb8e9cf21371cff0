// Command marketauth is the operator tool for the marketplace auth core: key
// management, SQL schema setup and a lockout drill against Redis.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "marketauth:", err)
		os.Exit(1)
	}
}
