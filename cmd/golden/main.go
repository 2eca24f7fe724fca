// Command golden inspects and maintains snapshot files.
//
// Usage:
//
//	golden fmt --check 'testdata/**/*.snapshot.json'
//	golden diff old/users_test.snapshot.json new/users_test.snapshot.json
//	golden show --scope TestUsers testdata/snapshots/users_test.snapshot.json
//	golden normalize --pipeline pipeline.yaml response.json
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/golden/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Exit errors were already reported by the command.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(exitErr.Code)
	}
}
