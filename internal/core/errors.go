package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingDirectory marks a declared root that does not exist or cannot be opened.
	// It is never returned: the root contributes no files and the orchestrator logs it.
	ErrMissingDirectory = errors.New("missing directory")

	// ErrUnreadableNode marks an existing filesystem entry that could not be read.
	ErrUnreadableNode = errors.New("unreadable node")

	// ErrRevisionUnavailable marks a failed source-control revision query.
	ErrRevisionUnavailable = errors.New("revision unavailable")

	// ErrToolchainFailure marks a compiler or archiver invocation that failed.
	ErrToolchainFailure = errors.New("toolchain failure")
)

// BuildError is a fatal build condition with enough context to diagnose it
// without rerunning: the stage, the path involved and the underlying cause.
//
// Diagnostics holds tool output verbatim apart from CRLF line endings and
// the single trailing newline.
type BuildError struct {
	Kind        error
	Stage       string
	Path        string
	Msg         string
	Diagnostics string
	Cause       error
}

func (e *BuildError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("build error")
	}
	if e.Stage != "" {
		fmt.Fprintf(&b, ": stage %s", e.Stage)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, ": %s", e.Path)
	}
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.Diagnostics != "" {
		b.WriteString("\n")
		b.WriteString(e.Diagnostics)
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is/As.
func (e *BuildError) Unwrap() []error {
	if e == nil {
		return nil
	}
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// WithStage attributes err to a stage.
//
// A *BuildError without a stage is copied and stamped; any other error is
// wrapped into a BuildError of kind fallback.
func WithStage(err error, stage string, fallback error) error {
	if err == nil {
		return nil
	}
	var be *BuildError
	if errors.As(err, &be) {
		if be.Stage != "" {
			return err
		}
		cp := *be
		cp.Stage = stage
		return &cp
	}
	return &BuildError{Kind: fallback, Stage: stage, Cause: err}
}
