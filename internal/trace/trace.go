package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// BuildTrace is the canonical, deterministic record of one orchestrator run.
//
// Invariants:
//   - Must capture RegistryHash and the list of stage events.
//   - Must contain logical transitions, not runtime-dependent details.
//   - Must not include timestamps, run IDs, absolute paths or error strings.
//
// Canonical representation:
//   - Events are sorted via Canonicalize() by stage ordinal, then event kind.
//   - JSON serialization uses a custom marshaler to fix field order and omit absent optional fields.
//
// The trace is observational only and must never affect build behavior.
type BuildTrace struct {
	RegistryHash string
	Events       []TraceEvent
}

// TraceEventKind is the stable, canonical discriminator for TraceEvent.
// The string values are part of the trace's canonical bytes; do not rename.
type TraceEventKind string

const (
	EventStageDiscovered TraceEventKind = "StageDiscovered"
	EventStageCompiled   TraceEventKind = "StageCompiled"
	EventStageFailed     TraceEventKind = "StageFailed"
	EventStageSkipped    TraceEventKind = "StageSkipped"
)

// TraceEvent is a single logical stage transition.
//
// Optional fields must be set deterministically and canonicalized:
//   - Empty slices are normalized to nil (omitted in JSON).
//   - Files and Artifacts are sorted.
type TraceEvent struct {
	Kind TraceEventKind

	// Stage is the stage name. Required.
	Stage string

	// Ordinal is the stage's declared build position.
	Ordinal int

	// Reason is a stable reason code ("ToolchainFailure", "UpstreamFailed").
	Reason string

	// CauseStage records the failed stage that caused a skip.
	CauseStage string

	// Files are the discovered sources, relative to the work directory, slash separated.
	Files []string

	// Artifacts are the produced artifact names.
	Artifacts []string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *BuildTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.RegistryHash == "" {
		return errors.New("registryHash is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Stage == "" {
			return fmt.Errorf("events[%d].stage is required for kind %q", i, e.Kind)
		}
		for j, a := range e.Artifacts {
			if a == "" {
				return fmt.Errorf("events[%d].artifacts[%d] is empty", i, j)
			}
		}
		for j, f := range e.Files {
			if f == "" {
				return fmt.Errorf("events[%d].files[%d] is empty", i, j)
			}
		}
	}
	return nil
}

// Canonicalize normalizes and sorts the trace into its canonical form.
//
// Canonicalization rules:
//   - Files and Artifacts are copied and sorted; empty slices become nil.
//   - Events are stably sorted by (ordinal, stage, kindOrder, reason, causeStage).
func (t *BuildTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		t.Events[i].Files = sortedCopy(t.Events[i].Files)
		t.Events[i].Artifacts = sortedCopy(t.Events[i].Artifacts)
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]

		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return a.CauseStage < b.CauseStage
	})
}

func kindOrder(k TraceEventKind) int {
	switch k {
	case EventStageDiscovered:
		return 10
	case EventStageCompiled:
		return 20
	case EventStageFailed:
		return 30
	case EventStageSkipped:
		return 40
	default:
		return 1000
	}
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy of the trace to avoid mutating the caller's slices.
func (t BuildTrace) CanonicalJSON() ([]byte, error) {
	copyTrace := BuildTrace{RegistryHash: t.RegistryHash}
	copyTrace.Events = make([]TraceEvent, len(t.Events))
	copy(copyTrace.Events, t.Events)
	copyTrace.Canonicalize()
	if err := copyTrace.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&copyTrace)
}

// Hash returns the deterministic trace hash (sha256 hex) of the canonical JSON bytes.
func (t BuildTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON ensures canonical field ordering and omission rules.
func (t BuildTrace) MarshalJSON() ([]byte, error) {
	if t.RegistryHash == "" {
		return nil, errors.New("registryHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString("{\"registryHash\":")
	rh, _ := json.Marshal(t.RegistryHash)
	buf.Write(rh)

	buf.WriteString(",\"events\":[")
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON ensures canonical field ordering and omission of empty optional fields.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	// kind (always first)
	writeField(&buf, "kind", string(e.Kind), false)
	writeField(&buf, "stage", e.Stage, true)
	fmt.Fprintf(&buf, ",\"ordinal\":%d", e.Ordinal)
	if e.Reason != "" {
		writeField(&buf, "reason", e.Reason, true)
	}
	if e.CauseStage != "" {
		writeField(&buf, "causeStage", e.CauseStage, true)
	}
	writeList(&buf, "files", sortedCopy(e.Files))
	writeList(&buf, "artifacts", sortedCopy(e.Artifacts))

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, name, value string, comma bool) {
	if comma {
		buf.WriteByte(',')
	}
	buf.WriteString("\"" + name + "\":")
	vb, _ := json.Marshal(value)
	buf.Write(vb)
}

func writeList(buf *bytes.Buffer, name string, values []string) {
	if len(values) == 0 {
		return
	}
	buf.WriteString(",\"" + name + "\":[")
	for i := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		vb, _ := json.Marshal(values[i])
		buf.Write(vb)
	}
	buf.WriteByte(']')
}
