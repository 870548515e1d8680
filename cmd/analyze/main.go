// Command analyze runs a one-off portfolio, token or price analysis and
// prints the report as JSON.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(buildAnalyzer).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
