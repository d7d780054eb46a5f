package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gookit/color"

	"kernbuild/internal/core"
	"kernbuild/internal/stage"
	"kernbuild/internal/trace"
)

// CLIResult is the outcome of one CLI invocation.
type CLIResult struct {
	ExitCode int
	Report   *stage.BuildReport
}

// RevisionSource resolves the source revision when --revision is not given.
type RevisionSource interface {
	Revision(ctx context.Context) (string, error)
}

// Execute maps a canonical Invocation to one orchestrator run.
//
// Responsibilities:
//   - Load and validate the stage registry.
//   - Resolve the revision (explicit value wins over the git query).
//   - Wire the toolchain, console output and trace recorder.
//   - Write the trace file after the run, even on failure.
//   - Translate outcomes to semantic exit codes.
func Execute(ctx context.Context, inv Invocation, stdout, stderr io.Writer) (CLIResult, error) {
	return ExecuteWithRevision(ctx, inv, &core.GitRevision{WorkDir: inv.WorkDir}, stdout, stderr)
}

// ExecuteWithRevision is Execute with an explicit revision source.
func ExecuteWithRevision(ctx context.Context, inv Invocation, revs RevisionSource, stdout, stderr io.Writer) (res CLIResult, execErr error) {
	res.ExitCode = ExitInternalError
	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitInternalError
			res.Report = nil
			execErr = fmt.Errorf("panic: %v", r)
		}
	}()

	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if inv.NoColor {
		color.Disable()
	}
	logger := newLogger(stderr, inv.Verbose)

	reg, err := loadRegistry(inv)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	if err := reg.Validate(); err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	if err := os.MkdirAll(inv.OutputDir, 0o755); err != nil {
		res.ExitCode = ExitConfigError
		return res, fmt.Errorf("create output dir: %w", err)
	}

	rev := resolveRevision(ctx, inv, revs, logger)

	tc := core.NewToolchain(inv.Compiler, inv.Archiver, inv.WorkDir, inv.OutputDir)
	tc.Jobs = inv.Jobs

	orch, err := stage.NewOrchestrator(tc, inv.WorkDir)
	if err != nil {
		return res, err
	}
	out := newConsole(stdout, reg)
	rec := trace.NewRecorder()
	orch.Sink = trace.Tee(out, rec)
	orch.Logger = logger
	orch.RunID = uuid.NewString()

	out.header(inv, reg, orch.RunID, rev)

	report, runErr := orch.Run(ctx, reg, inv.Profile, rev)
	res.Report = report

	if inv.Trace.Enabled && report != nil {
		if err := writeTrace(inv.Trace.Path, rec.Trace(report.RegistryHash.String())); err != nil {
			logger.Printf("writing trace: %v", err)
			if runErr == nil {
				res.ExitCode = ExitConfigError
				return res, err
			}
		}
	}

	if runErr != nil {
		out.failure(runErr)
		var be *core.BuildError
		var re *stage.RegistryError
		switch {
		case errors.As(runErr, &be):
			res.ExitCode = ExitStageFailure
		case errors.As(runErr, &re):
			res.ExitCode = ExitConfigError
		default:
			res.ExitCode = ExitInternalError
		}
		return res, runErr
	}

	out.summary(report, inv.WorkDir)
	res.ExitCode = ExitSuccess
	return res, nil
}

// resolveRevision never fails: a failed query is carried in Revision.Err and
// only becomes fatal for stages that need the revision.
func resolveRevision(ctx context.Context, inv Invocation, revs RevisionSource, logger *log.Logger) stage.Revision {
	if inv.Revision != "" {
		return stage.Revision{ID: inv.Revision}
	}
	if revs == nil {
		return stage.Revision{Err: fmt.Errorf("no revision source")}
	}
	id, err := revs.Revision(ctx)
	if err != nil {
		logger.Printf("revision query failed: %v", err)
		return stage.Revision{Err: err}
	}
	return stage.Revision{ID: id}
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	if !verbose {
		w = io.Discard
	}
	return log.New(w, "[kernbuild] ", 0)
}

func writeTrace(path string, tr trace.BuildTrace) error {
	b, err := tr.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create trace dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}
