package cli

import (
	"context"
	"io"
)

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the semantic
// exit code plus any error.
func Run(ctx context.Context, args []string, env LookupEnv, stdout, stderr io.Writer) (CLIResult, error) {
	a := &app{env: env, stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if !a.ran {
		if err != nil {
			return CLIResult{ExitCode: ExitInvalidInvocation}, invalidInvocationf("%v", err)
		}
		// --help, bare command
		return CLIResult{ExitCode: ExitSuccess}, nil
	}
	return a.result, err
}
