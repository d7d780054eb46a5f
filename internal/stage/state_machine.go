package stage

import "fmt"

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s StageState) bool {
	switch s {
	case StageDone, StageFailed, StageSkipped:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the stage produced its artifact.
func IsSuccessful(s StageState) bool {
	return s == StageDone
}

// Transition performs a validated transition for a single stage.
//
// The caller supplies the expected prior state (from) to make misuse observable.
// The state map is mutated if and only if the transition is valid.
func Transition(state ExecutionState, stage string, from, to StageState) error {
	cur, ok := state[stage]
	if !ok {
		return fmt.Errorf("unknown stage in state: %q", stage)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", stage, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", stage, from, to)
	}
	state[stage] = to
	return nil
}

func isAllowedTransition(from, to StageState) bool {
	switch from {
	case StagePending:
		return to == StageDiscovering || to == StageSkipped
	case StageDiscovering:
		return to == StageCompiling || to == StageFailed
	case StageCompiling:
		return to == StageDone || to == StageFailed
	default:
		return false
	}
}

// FailAndSkip marks failed as FAILED and every stage declared after it as
// SKIPPED. It returns the skipped stage names in declaration order.
//
// A later stage that is not PENDING indicates the orchestrator ran stages out
// of order and is reported as an invariant violation.
func FailAndSkip(reg Registry, state ExecutionState, failed string) ([]string, error) {
	idx := -1
	for i, d := range reg.Stages {
		if d.Name == failed {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("unknown stage: %q", failed)
	}

	switch cur := state[failed]; cur {
	case StageDiscovering, StageCompiling:
		state[failed] = StageFailed
	case StageFailed:
	default:
		return nil, fmt.Errorf("cannot fail %q from state %s", failed, cur)
	}

	var skipped []string
	for _, d := range reg.Stages[idx+1:] {
		st, ok := state[d.Name]
		if !ok {
			return nil, fmt.Errorf("missing state for %q", d.Name)
		}
		if st != StagePending {
			return nil, fmt.Errorf("invariant violation: stage %q is %s after failure of %q", d.Name, st, failed)
		}
		state[d.Name] = StageSkipped
		skipped = append(skipped, d.Name)
	}
	return skipped, nil
}
