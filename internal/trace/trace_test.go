package trace

import (
	"bytes"
	"reflect"
	"testing"
)

func TestCanonicalTraceStability_ByteForByte(t *testing.T) {
	trace1 := BuildTrace{
		RegistryHash: "reg-abc",
		Events: []TraceEvent{
			{Kind: EventStageCompiled, Stage: "sys", Ordinal: 1, Artifacts: []string{"sys"}},
			{Kind: EventStageDiscovered, Stage: "sys", Ordinal: 1, Files: []string{"src/b.cc", "src/a.cc"}},
			{Kind: EventStageSkipped, Stage: "dev", Ordinal: 3, Reason: "UpstreamFailed", CauseStage: "ulib"},
			{Kind: EventStageFailed, Stage: "ulib", Ordinal: 2, Reason: "ToolchainFailure"},
		},
	}

	trace2 := BuildTrace{
		RegistryHash: "reg-abc",
		Events: []TraceEvent{
			{Kind: EventStageFailed, Stage: "ulib", Ordinal: 2, Reason: "ToolchainFailure"},
			{Kind: EventStageSkipped, Stage: "dev", Ordinal: 3, CauseStage: "ulib", Reason: "UpstreamFailed"},
			{Kind: EventStageDiscovered, Stage: "sys", Ordinal: 1, Files: []string{"src/a.cc", "src/b.cc"}},
			{Kind: EventStageCompiled, Stage: "sys", Ordinal: 1, Artifacts: []string{"sys"}},
		},
	}

	b1, err := trace1.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (1): %v", err)
	}
	b2, err := trace2.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (2): %v", err)
	}

	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected identical bytes\n1=%s\n2=%s", string(b1), string(b2))
	}
}

func TestCanonicalOrdering_ByOrdinalThenKind(t *testing.T) {
	tr := BuildTrace{
		RegistryHash: "r",
		Events: []TraceEvent{
			{Kind: EventStageCompiled, Stage: "ulib", Ordinal: 2, Artifacts: []string{"ulib"}},
			{Kind: EventStageCompiled, Stage: "sys", Ordinal: 1, Artifacts: []string{"sys"}},
			{Kind: EventStageDiscovered, Stage: "sys", Ordinal: 1},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"registryHash":"r","events":[` +
		`{"kind":"StageDiscovered","stage":"sys","ordinal":1},` +
		`{"kind":"StageCompiled","stage":"sys","ordinal":1,"artifacts":["sys"]},` +
		`{"kind":"StageCompiled","stage":"ulib","ordinal":2,"artifacts":["ulib"]}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
}

func TestCanonicalJSON_DoesNotMutateCaller(t *testing.T) {
	files := []string{"z.cc", "a.cc"}
	tr := BuildTrace{RegistryHash: "r", Events: []TraceEvent{{Kind: EventStageDiscovered, Stage: "sys", Files: files}}}
	if _, err := tr.CanonicalJSON(); err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	if !reflect.DeepEqual(files, []string{"z.cc", "a.cc"}) {
		t.Fatalf("caller slice mutated: %v", files)
	}
}

func TestHash_Deterministic(t *testing.T) {
	tr1 := BuildTrace{RegistryHash: "r", Events: []TraceEvent{{Kind: EventStageCompiled, Stage: "sys"}}}
	tr2 := BuildTrace{RegistryHash: "r", Events: []TraceEvent{{Kind: EventStageCompiled, Stage: "sys"}}}

	h1, err := tr1.Hash()
	if err != nil {
		t.Fatalf("hash (1): %v", err)
	}
	h2, err := tr2.Hash()
	if err != nil {
		t.Fatalf("hash (2): %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical hash, got %q != %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected sha256 hex, got %q", h1)
	}
}

func TestValidate_RejectsMissingFields(t *testing.T) {
	cases := []BuildTrace{
		{Events: []TraceEvent{{Kind: EventStageCompiled, Stage: "sys"}}},
		{RegistryHash: "r", Events: []TraceEvent{{Stage: "sys"}}},
		{RegistryHash: "r", Events: []TraceEvent{{Kind: EventStageCompiled}}},
		{RegistryHash: "r", Events: []TraceEvent{{Kind: EventStageCompiled, Stage: "sys", Artifacts: []string{""}}}},
	}
	for i, tr := range cases {
		if _, err := tr.CanonicalJSON(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

type panickySink struct{}

func (panickySink) Record(TraceEvent) { panic("boom") }

func TestTee_SurvivesPanickingSink(t *testing.T) {
	rec := NewRecorder()
	sink := Tee(panickySink{}, nil, rec)

	sink.Record(TraceEvent{Kind: EventStageDiscovered, Stage: "sys"})
	sink.Record(TraceEvent{Kind: EventStageCompiled, Stage: "sys"})

	got := rec.Snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 events after panicking sink, got %d", len(got))
	}
	tr := rec.Trace("r")
	if tr.RegistryHash != "r" || tr.Events[0].Kind != EventStageDiscovered {
		t.Fatalf("unexpected trace: %#v", tr)
	}
}
