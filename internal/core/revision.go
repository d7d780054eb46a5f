package core

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitRevision queries the short revision of the checkout at WorkDir.
//
// The version-control tool is an external collaborator: a failing query is
// reported as ErrRevisionUnavailable and never papered over.
type GitRevision struct {
	WorkDir string

	// Git is the git executable. Empty means "git" from PATH.
	Git string
}

// Revision runs `git rev-parse --short HEAD`.
func (g *GitRevision) Revision(ctx context.Context) (string, error) {
	bin := g.Git
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, "rev-parse", "--short", "HEAD")
	cmd.Dir = g.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &BuildError{
			Kind:        ErrRevisionUnavailable,
			Path:        g.WorkDir,
			Msg:         fmt.Sprintf("%s rev-parse failed", bin),
			Diagnostics: normalizeDiagnostics(stderr.Bytes()),
			Cause:       err,
		}
	}
	rev := strings.TrimSpace(stdout.String())
	if rev == "" {
		return "", &BuildError{Kind: ErrRevisionUnavailable, Path: g.WorkDir, Msg: "empty revision"}
	}
	return rev, nil
}
