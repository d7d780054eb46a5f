package main

import (
	"context"
	"fmt"
	"os"

	"kernbuild/internal/cli"
)

// main is the only place the process environment and standard streams are
// bound; everything below receives them explicitly.
func main() {
	result, err := cli.Run(context.Background(), os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr)
	if err != nil && result.ExitCode != cli.ExitStageFailure {
		// Stage failures are already reported with their diagnostics.
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(result.ExitCode)
}
