// Command shai turns natural-language requests into shell commands and runs
// them only after they pass the safety check.
package main

import (
	"fmt"
	"os"

	"github.com/shai-cli/shai/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
