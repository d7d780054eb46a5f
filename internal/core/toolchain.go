package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

const (
	DefaultCompiler = "riscv64-unknown-elf-g++"
	DefaultArchiver = "riscv64-unknown-elf-ar"
)

// Toolchain compiles a set of source files and archives the objects into one
// static library per call.
//
// Every file, whatever its extension, goes through the same compiler driver;
// the driver dispatches on extension (C++, C, preprocessed assembly).
//
// Toolchain does not enforce a non-empty file list: the archiver's verdict on
// an empty input is passed through.
type Toolchain struct {
	// Compiler and Archiver are executable names or paths.
	Compiler string
	Archiver string

	// WorkDir is the directory the tools run in.
	WorkDir string

	// OutputDir receives lib<artifact>.a and the obj/<artifact>/ scratch tree.
	OutputDir string

	// Jobs bounds concurrent compiler processes within one call. Values < 1 mean 1.
	Jobs int
}

// NewToolchain creates a Toolchain with a single compile job.
func NewToolchain(compiler, archiver, workDir, outputDir string) *Toolchain {
	if compiler == "" {
		compiler = DefaultCompiler
	}
	if archiver == "" {
		archiver = DefaultArchiver
	}
	return &Toolchain{Compiler: compiler, Archiver: archiver, WorkDir: workDir, OutputDir: outputDir, Jobs: 1}
}

// ArchivePath returns where the archive for artifact is written.
func (t *Toolchain) ArchivePath(artifact string) string {
	return filepath.Join(t.OutputDir, "lib"+artifact+".a")
}

// Compile compiles files with flags and archives the objects as lib<artifact>.a.
//
// A non-zero exit from either tool is returned as a *BuildError of kind
// ErrToolchainFailure carrying the tool's output verbatim. Nothing is retried.
func (t *Toolchain) Compile(ctx context.Context, files []SourceFile, flags FlagSet, artifact string) (*Artifact, error) {
	if t == nil {
		return nil, fmt.Errorf("nil toolchain")
	}
	if artifact == "" {
		return nil, fmt.Errorf("artifact name is empty")
	}

	objDir := filepath.Join(t.OutputDir, "obj", artifact)
	// Every run is from scratch: stale objects must not leak into the archive.
	if err := os.RemoveAll(objDir); err != nil {
		return nil, fmt.Errorf("clearing %s: %w", objDir, err)
	}
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", objDir, err)
	}

	objects := make([]string, len(files))
	for i, f := range files {
		base := strings.TrimSuffix(filepath.Base(f.Path), "."+f.Ext)
		objects[i] = filepath.Join(objDir, fmt.Sprintf("%04d-%s.o", i, base))
	}

	if err := t.compileObjects(ctx, files, objects, flags); err != nil {
		return nil, err
	}

	archive := t.ArchivePath(artifact)
	if err := os.Remove(archive); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale %s: %w", archive, err)
	}
	args := append([]string{"crs", archive}, objects...)
	if err := t.run(ctx, archive, t.Archiver, args); err != nil {
		return nil, err
	}

	return &Artifact{Name: artifact, Path: archive, Objects: objects}, nil
}

// compileObjects runs one compiler process per file, up to Jobs at a time.
// When several files fail, the error for the lowest index is reported so the
// outcome does not depend on scheduling.
func (t *Toolchain) compileObjects(ctx context.Context, files []SourceFile, objects []string, flags FlagSet) error {
	jobs := t.Jobs
	if jobs < 1 {
		jobs = 1
	}
	if jobs > len(files) {
		jobs = len(files)
	}

	errs := make([]error, len(files))
	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < jobs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				args := flags.Append("-c", files[i].Path, "-o", objects[i])
				errs[i] = t.run(ctx, files[i].Path, t.Compiler, args)
			}
		}()
	}
	for i := range files {
		work <- i
	}
	close(work)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// run executes one tool invocation and converts failures into BuildErrors.
// The stage is left unset; the orchestrator attributes it.
func (t *Toolchain) run(ctx context.Context, path, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = t.WorkDir

	// Set process group so we can kill the entire process tree on cancellation
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return &BuildError{Kind: ErrToolchainFailure, Path: path, Msg: fmt.Sprintf("cannot start %s", name), Cause: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return &BuildError{Kind: ErrToolchainFailure, Path: path, Msg: fmt.Sprintf("%s interrupted", name), Cause: ctx.Err()}
	case err = <-done:
	}

	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &BuildError{
			Kind:        ErrToolchainFailure,
			Path:        path,
			Msg:         fmt.Sprintf("%s exited with status %d", name, exitErr.ExitCode()),
			Diagnostics: normalizeDiagnostics(output.Bytes()),
		}
	}
	return &BuildError{Kind: ErrToolchainFailure, Path: path, Msg: fmt.Sprintf("running %s", name), Cause: err}
}

// normalizeDiagnostics converts CRLF to LF and drops the final newline.
// Everything else is kept byte for byte.
func normalizeDiagnostics(out []byte) string {
	out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
	return string(bytes.TrimSuffix(out, []byte("\n")))
}
