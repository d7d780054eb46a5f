package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"kernbuild/internal/core"
	"kernbuild/internal/trace"
)

// Compiler compiles one stage's files into one artifact.
// *core.Toolchain is the production implementation.
type Compiler interface {
	Compile(ctx context.Context, files []core.SourceFile, flags core.FlagSet, artifact string) (*core.Artifact, error)
}

// Revision is the outcome of the source-control query, threaded in explicitly.
// An empty ID means no revision is available; Err says why.
type Revision struct {
	ID  string
	Err error
}

// DiscoverFunc finds the source files of one root. core.Discover is the
// production implementation.
type DiscoverFunc func(root string, exts core.ExtensionSet, recurse bool) ([]core.SourceFile, error)

// Orchestrator runs a registry's stages strictly in declared order.
type Orchestrator struct {
	Compiler Compiler

	// Discover walks each stage root. Nil means core.Discover.
	Discover DiscoverFunc

	// WorkDir anchors relative roots and include directories.
	WorkDir string

	// Flags memoizes flag sets across stages. Created on demand when nil.
	Flags *core.FlagSetBuilder

	// Sink receives stage trace events. Nil discards them.
	Sink trace.Sink

	// Logger receives diagnostic messages. Nil discards them.
	Logger *log.Logger

	// RunID identifies the run in the report. A random UUID is used when empty.
	RunID string
}

// NewOrchestrator creates an orchestrator driving compiler from workDir.
func NewOrchestrator(compiler Compiler, workDir string) (*Orchestrator, error) {
	if compiler == nil {
		return nil, fmt.Errorf("nil compiler")
	}
	return &Orchestrator{Compiler: compiler, Discover: core.Discover, WorkDir: workDir, Flags: core.NewFlagSetBuilder()}, nil
}

// Run builds every stage of reg in order.
//
// Per stage: PENDING -> DISCOVERING (each root, in declaration order) ->
// COMPILING (one toolchain call) -> DONE. The first hard failure marks the
// stage FAILED, every later stage SKIPPED, and is returned as a
// *core.BuildError naming the stage. The report is returned in both cases.
//
// A registry that fails validation is returned as a *RegistryError with a nil report.
func (o *Orchestrator) Run(ctx context.Context, reg Registry, profile core.Profile, rev Revision) (*BuildReport, error) {
	if o.Compiler == nil {
		return nil, fmt.Errorf("nil compiler")
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if o.Flags == nil {
		o.Flags = core.NewFlagSetBuilder()
	}
	if o.Discover == nil {
		o.Discover = core.Discover
	}
	logger := o.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	runID := o.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	state := make(ExecutionState, len(reg.Stages))
	for _, d := range reg.Stages {
		state[d.Name] = StagePending
	}

	report := &BuildReport{
		RunID:        runID,
		RegistryHash: reg.Hash(),
		Profile:      profile,
		Revision:     rev.ID,
		Results:      make([]StageResult, 0, len(reg.Stages)),
	}
	logger.Printf("run %s: registry %s (%d stages), profile %s", runID, reg.Name, len(reg.Stages), profile)

	for _, d := range reg.Stages {
		res, err := o.runStage(ctx, d, state, profile, rev, logger)
		if res.State == StageCompiling || res.State == StageDone {
			report.Order = append(report.Order, d.Name)
		}
		if err == nil {
			report.Results = append(report.Results, res)
			continue
		}

		skipped, serr := FailAndSkip(reg, state, d.Name)
		if serr != nil {
			return nil, serr
		}
		res.State = StageFailed
		res.Err = err
		report.Results = append(report.Results, res)
		trace.SafeRecord(o.Sink, trace.TraceEvent{Kind: trace.EventStageFailed, Stage: d.Name, Ordinal: d.Ordinal, Reason: reasonFor(err)})
		logger.Printf("stage %s failed: %v", d.Name, err)

		for _, name := range skipped {
			sd, _ := reg.Stage(name)
			report.Results = append(report.Results, StageResult{Stage: name, Ordinal: sd.Ordinal, State: StageSkipped})
			trace.SafeRecord(o.Sink, trace.TraceEvent{Kind: trace.EventStageSkipped, Stage: name, Ordinal: sd.Ordinal, Reason: "UpstreamFailed", CauseStage: d.Name})
		}
		report.FinalState = state.Clone()
		return report, err
	}

	report.FinalState = state.Clone()
	return report, nil
}

// runStage drives one stage. On error the returned result carries whatever
// was gathered before the failure; the caller marks it FAILED.
func (o *Orchestrator) runStage(ctx context.Context, d Descriptor, state ExecutionState, profile core.Profile, rev Revision, logger *log.Logger) (StageResult, error) {
	res := StageResult{Stage: d.Name, Ordinal: d.Ordinal, State: StagePending}

	if err := Transition(state, d.Name, StagePending, StageDiscovering); err != nil {
		return res, err
	}
	res.State = StageDiscovering

	exts := d.ExtensionSet()
	seen := make(map[string]struct{})
	files := []core.SourceFile{}
	for _, root := range d.Roots {
		dir := o.resolve(root.Dir)
		if !core.RootExists(dir) {
			missing := &core.BuildError{Kind: core.ErrMissingDirectory, Stage: d.Name, Path: dir, Msg: "contributes no files"}
			logger.Printf("%v", missing)
		}
		found, err := o.Discover(dir, exts, root.Recurse)
		if err != nil {
			return res, core.WithStage(err, d.Name, core.ErrUnreadableNode)
		}
		for _, f := range found {
			if _, dup := seen[f.Path]; dup {
				continue
			}
			seen[f.Path] = struct{}{}
			files = append(files, f)
		}
	}
	res.Files = files
	trace.SafeRecord(o.Sink, trace.TraceEvent{Kind: trace.EventStageDiscovered, Stage: d.Name, Ordinal: d.Ordinal, Files: o.relativePaths(files)})
	logger.Printf("stage %s: %d files", d.Name, len(files))

	revision := ""
	if d.NeedsRevision {
		if rev.ID == "" {
			return res, &core.BuildError{Kind: core.ErrRevisionUnavailable, Stage: d.Name, Msg: "stage requires a source revision", Cause: rev.Err}
		}
		revision = rev.ID
	}
	flags := o.Flags.Build(profile, revision)
	for _, inc := range d.Includes {
		flags = flags.Append("-I" + o.resolve(inc))
	}
	res.Flags = flags

	if err := Transition(state, d.Name, StageDiscovering, StageCompiling); err != nil {
		return res, err
	}
	res.State = StageCompiling

	art, err := o.Compiler.Compile(ctx, files, flags, d.Artifact)
	if err != nil {
		return res, core.WithStage(err, d.Name, core.ErrToolchainFailure)
	}
	if art == nil {
		return res, &core.BuildError{Kind: core.ErrToolchainFailure, Stage: d.Name, Msg: "toolchain returned no artifact"}
	}

	if err := Transition(state, d.Name, StageCompiling, StageDone); err != nil {
		return res, err
	}
	res.State = StageDone
	res.Artifact = art
	trace.SafeRecord(o.Sink, trace.TraceEvent{Kind: trace.EventStageCompiled, Stage: d.Name, Ordinal: d.Ordinal, Artifacts: []string{art.Name}})
	return res, nil
}

func (o *Orchestrator) resolve(dir string) string {
	if filepath.IsAbs(dir) || o.WorkDir == "" {
		return filepath.Clean(dir)
	}
	return filepath.Join(o.WorkDir, dir)
}

func (o *Orchestrator) relativePaths(files []core.SourceFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		p := f.Path
		if o.WorkDir != "" {
			if rel, err := filepath.Rel(o.WorkDir, f.Path); err == nil {
				p = rel
			}
		}
		out = append(out, filepath.ToSlash(p))
	}
	return out
}

// reasonFor maps an error to a stable trace reason code.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, core.ErrUnreadableNode):
		return "UnreadableNode"
	case errors.Is(err, core.ErrRevisionUnavailable):
		return "RevisionUnavailable"
	case errors.Is(err, core.ErrToolchainFailure):
		return "ToolchainFailure"
	default:
		return "InternalError"
	}
}
