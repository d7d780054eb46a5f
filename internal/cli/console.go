package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gookit/color"

	"kernbuild/internal/core"
	"kernbuild/internal/stage"
	"kernbuild/internal/trace"
)

// console prints stage progress as trace events arrive.
// It is a trace.Sink and never fails.
type console struct {
	mu       sync.Mutex
	w        io.Writer
	position map[string]int
	total    int
}

func newConsole(w io.Writer, reg stage.Registry) *console {
	pos := make(map[string]int, len(reg.Stages))
	for i, d := range reg.Stages {
		pos[d.Name] = i + 1
	}
	return &console{w: w, position: pos, total: len(reg.Stages)}
}

func (c *console) Record(e trace.TraceEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	step := color.Info.Sprintf("[%d/%d]", c.position[e.Stage], c.total)
	switch e.Kind {
	case trace.EventStageDiscovered:
		fmt.Fprintf(c.w, "%s %s: %d source files\n", step, e.Stage, len(e.Files))
	case trace.EventStageCompiled:
		fmt.Fprintf(c.w, "%s %s\n", step, color.Success.Sprintf("built %s", strings.Join(e.Artifacts, ", ")))
	case trace.EventStageFailed:
		fmt.Fprintf(c.w, "%s %s\n", step, color.Danger.Sprintf("%s failed (%s)", e.Stage, e.Reason))
	case trace.EventStageSkipped:
		fmt.Fprintf(c.w, "%s %s\n", step, color.Warn.Sprintf("%s skipped, %s failed", e.Stage, e.CauseStage))
	}
}

func (c *console) header(inv Invocation, reg stage.Registry, runID string, rev stage.Revision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	revText := rev.ID
	if revText == "" {
		revText = "unavailable"
	}
	fmt.Fprintf(c.w, "%s %s (%s profile, revision %s)\n", color.Comment.Sprint("run"), runID, inv.Profile, revText)
	fmt.Fprintf(c.w, "%s %s with %d stages\n", color.Comment.Sprint("registry"), reg.Name, len(reg.Stages))
}

func (c *console) summary(report *stage.BuildReport, workDir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range report.Artifacts() {
		p := a.Path
		if rel, err := filepath.Rel(workDir, a.Path); err == nil {
			p = rel
		}
		fmt.Fprintf(c.w, "  %s %s\n", color.Success.Sprint("->"), filepath.ToSlash(p))
	}
}

// failure prints the failing stage with the toolchain diagnostics verbatim.
func (c *console) failure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var be *core.BuildError
	if !errors.As(err, &be) {
		fmt.Fprintln(c.w, color.Danger.Sprint(err.Error()))
		return
	}
	head := *be
	head.Diagnostics = ""
	fmt.Fprintln(c.w, color.Danger.Sprint(head.Error()))
	if be.Diagnostics != "" {
		fmt.Fprintln(c.w, be.Diagnostics)
	}
}
