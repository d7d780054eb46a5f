package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kernbuild/internal/toolchaintest"
)

func TestCompile_ArchivesEveryFile(t *testing.T) {
	tools := toolchaintest.Install(t, false)
	workDir := t.TempDir()
	outDir := filepath.Join(workDir, "build")
	toolchaintest.WriteSources(t, workDir, "src/a.cpp", "src/b.cc", "src/boot.S")

	files, err := Discover(filepath.Join(workDir, "src"), NewExtensionSet("cpp", "cc", "S"), true)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	tc := NewToolchain(tools.Compiler, tools.Archiver, workDir, outDir)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	art, err := tc.Compile(ctx, files, BuildFlags(ProfileDebug, ""), "implementations")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if art.Name != "implementations" {
		t.Fatalf("unexpected artifact name %q", art.Name)
	}
	if art.Path != filepath.Join(outDir, "libimplementations.a") {
		t.Fatalf("unexpected archive path %q", art.Path)
	}
	if len(art.Objects) != 3 {
		t.Fatalf("expected 3 objects, got %v", art.Objects)
	}

	content, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	for _, f := range files {
		if !strings.Contains(string(content), f.Path) {
			t.Errorf("archive missing object for %s:\n%s", f.Path, content)
		}
	}

	calls := tools.CompilerCalls(t)
	if len(calls) != 3 {
		t.Fatalf("expected 3 compiler calls, got %d: %v", len(calls), calls)
	}
	for _, c := range calls {
		if !strings.HasPrefix(c, FreestandingPrefix().String()) {
			t.Errorf("compiler call does not start with the fixed prefix: %s", c)
		}
		if !strings.Contains(c, DebugDefine) {
			t.Errorf("compiler call missing %s: %s", DebugDefine, c)
		}
	}
}

func TestCompile_FailureSurfacesDiagnosticsVerbatim(t *testing.T) {
	tools := toolchaintest.Install(t, false)
	workDir := t.TempDir()
	toolchaintest.WriteSources(t, workDir, "src/good.cpp", "src/bad.cpp!")

	files, err := Discover(filepath.Join(workDir, "src"), NewExtensionSet("cpp"), false)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	tc := NewToolchain(tools.Compiler, tools.Archiver, workDir, filepath.Join(workDir, "build"))
	_, err = tc.Compile(context.Background(), files, BuildFlags(ProfileRelease, ""), "sys")
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !errors.Is(err, ErrToolchainFailure) {
		t.Fatalf("expected ErrToolchainFailure, got %v", err)
	}
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BuildError, got %T", err)
	}
	badPath := filepath.Join(workDir, "src", "bad.cpp")
	if be.Path != badPath {
		t.Fatalf("expected failing path %s, got %s", badPath, be.Path)
	}
	wantDiag := badPath + ":1:2: error: forced failure"
	if be.Diagnostics != wantDiag {
		t.Fatalf("diagnostics not verbatim\nwant=%q\ngot =%q", wantDiag, be.Diagnostics)
	}
	if !strings.Contains(err.Error(), wantDiag) {
		t.Fatalf("error text missing diagnostics: %v", err)
	}
	if calls := tools.ArchiverCalls(t); len(calls) != 0 {
		t.Fatalf("archiver must not run after a compile failure, got %v", calls)
	}
}

func TestCompile_ParallelJobsReportLowestFailure(t *testing.T) {
	tools := toolchaintest.Install(t, false)
	workDir := t.TempDir()
	toolchaintest.WriteSources(t, workDir,
		"src/a.cpp", "src/b.cpp!", "src/c.cpp", "src/d.cpp!", "src/e.cpp",
	)
	files, err := Discover(filepath.Join(workDir, "src"), NewExtensionSet("cpp"), false)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	tc := NewToolchain(tools.Compiler, tools.Archiver, workDir, filepath.Join(workDir, "build"))
	tc.Jobs = 4

	for i := 0; i < 3; i++ {
		_, err := tc.Compile(context.Background(), files, BuildFlags(ProfileRelease, ""), "dev")
		var be *BuildError
		if !errors.As(err, &be) {
			t.Fatalf("expected *BuildError, got %v", err)
		}
		if filepath.Base(be.Path) != "b.cpp" {
			t.Fatalf("expected lowest failing file b.cpp, got %s", be.Path)
		}
	}
}

func TestCompile_EmptyInputPassesThroughArchiverVerdict(t *testing.T) {
	workDir := t.TempDir()

	lenient := toolchaintest.Install(t, false)
	tc := NewToolchain(lenient.Compiler, lenient.Archiver, workDir, filepath.Join(workDir, "build"))
	art, err := tc.Compile(context.Background(), nil, BuildFlags(ProfileRelease, ""), "dev")
	if err != nil {
		t.Fatalf("lenient archiver should accept empty input: %v", err)
	}
	if len(art.Objects) != 0 {
		t.Fatalf("expected no objects, got %v", art.Objects)
	}
	if calls := lenient.CompilerCalls(t); len(calls) != 0 {
		t.Fatalf("compiler must not run for empty input, got %v", calls)
	}

	strict := toolchaintest.Install(t, true)
	tc = NewToolchain(strict.Compiler, strict.Archiver, workDir, filepath.Join(workDir, "build"))
	_, err = tc.Compile(context.Background(), nil, BuildFlags(ProfileRelease, ""), "dev")
	if !errors.Is(err, ErrToolchainFailure) {
		t.Fatalf("expected ErrToolchainFailure from strict archiver, got %v", err)
	}
	if !strings.Contains(err.Error(), "no archive members specified") {
		t.Fatalf("archiver diagnostic not surfaced: %v", err)
	}
}

func TestCompile_StaleObjectsRemoved(t *testing.T) {
	tools := toolchaintest.Install(t, false)
	workDir := t.TempDir()
	outDir := filepath.Join(workDir, "build")
	stale := filepath.Join(outDir, "obj", "sys", "9999-old.o")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	toolchaintest.WriteSources(t, workDir, "src/a.cpp")
	files, _ := Discover(filepath.Join(workDir, "src"), NewExtensionSet("cpp"), false)

	tc := NewToolchain(tools.Compiler, tools.Archiver, workDir, outDir)
	if _, err := tc.Compile(context.Background(), files, BuildFlags(ProfileRelease, ""), "sys"); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale object survived: %v", err)
	}
}

func TestCompile_MissingCompilerIsToolchainFailure(t *testing.T) {
	workDir := t.TempDir()
	toolchaintest.WriteSources(t, workDir, "src/a.cpp")
	files, _ := Discover(filepath.Join(workDir, "src"), NewExtensionSet("cpp"), false)

	tc := NewToolchain(filepath.Join(workDir, "no-such-cc"), "ar", workDir, filepath.Join(workDir, "build"))
	_, err := tc.Compile(context.Background(), files, BuildFlags(ProfileRelease, ""), "sys")
	if !errors.Is(err, ErrToolchainFailure) {
		t.Fatalf("expected ErrToolchainFailure, got %v", err)
	}
}

func TestNormalizeDiagnostics(t *testing.T) {
	tests := map[string]string{
		"a.cpp:1: error: x\r\nnote: y\r\n": "a.cpp:1: error: x\nnote: y",
		"   ^~~~ \n\n":                     "   ^~~~ \n",
		"col\t\n":                          "col\t",
		"no newline":                       "no newline",
		"":                                 "",
	}
	for in, want := range tests {
		if got := normalizeDiagnostics([]byte(in)); got != want {
			t.Errorf("normalizeDiagnostics(%q) = %q, want %q", in, got, want)
		}
	}
}
