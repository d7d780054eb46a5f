package stage

// StageState is the runtime state of a stage within one run.
//
// This is intentionally separated from Registry, which is immutable.
//
//	PENDING -> DISCOVERING -> COMPILING -> DONE
//	DISCOVERING|COMPILING -> FAILED
//	PENDING -> SKIPPED (an earlier stage failed)
type StageState string

const (
	StagePending     StageState = "PENDING"
	StageDiscovering StageState = "DISCOVERING"
	StageCompiling   StageState = "COMPILING"
	StageDone        StageState = "DONE"
	StageFailed      StageState = "FAILED"
	StageSkipped     StageState = "SKIPPED"
)

// ExecutionState maps stage name to its current StageState.
type ExecutionState map[string]StageState

// Clone returns an independent copy.
func (s ExecutionState) Clone() ExecutionState {
	cp := make(ExecutionState, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}
