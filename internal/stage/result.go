package stage

import "kernbuild/internal/core"

// StageResult is the outcome of one stage within a run.
type StageResult struct {
	Stage   string
	Ordinal int
	State   StageState

	// Files are the discovered sources, concatenated in root order.
	Files []core.SourceFile

	// Flags is the exact flag set handed to the toolchain.
	Flags core.FlagSet

	// Artifact is set when State is DONE.
	Artifact *core.Artifact

	// Err is set when State is FAILED.
	Err error
}

// BuildReport is the summary of one orchestrator run.
// It is owned by the caller and never persisted.
type BuildReport struct {
	RunID        string
	RegistryHash RegistryHash
	Profile      core.Profile
	Revision     string

	// Results holds one entry per declared stage, in declaration order.
	Results []StageResult

	// Order lists the stages whose toolchain step was invoked, in invocation order.
	Order []string

	FinalState ExecutionState
}

// Failed returns the failed stage, if any.
func (r *BuildReport) Failed() (StageResult, bool) {
	if r == nil {
		return StageResult{}, false
	}
	for _, res := range r.Results {
		if res.State == StageFailed {
			return res, true
		}
	}
	return StageResult{}, false
}

// Artifacts returns the produced artifacts in build order.
func (r *BuildReport) Artifacts() []*core.Artifact {
	if r == nil {
		return nil
	}
	var out []*core.Artifact
	for _, res := range r.Results {
		if res.Artifact != nil {
			out = append(out, res.Artifact)
		}
	}
	return out
}
