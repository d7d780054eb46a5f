package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	icl "kernbuild/internal/cli"
	"kernbuild/internal/stage"
	"kernbuild/internal/toolchaintest"
)

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}

func toolEnv(tools toolchaintest.Tools, extra map[string]string) icl.LookupEnv {
	env := map[string]string{
		icl.EnvCompiler: tools.Compiler,
		icl.EnvArchiver: tools.Archiver,
	}
	for k, v := range extra {
		env[k] = v
	}
	return icl.MapEnv(env)
}

func TestEndToEnd_LibraryStagesIdenticalAcrossRuns(t *testing.T) {
	workDir := t.TempDir()
	tools := toolchaintest.Install(t, false)
	toolchaintest.WriteSources(t, workDir,
		"src/cpp/sys/a.cc",
		"src/cpp/ulib/b.cc",
		"src/cpp/dev/net/c.cc",
		"src/boot.S",
	)
	env := toolEnv(tools, map[string]string{icl.EnvCargoProfile: "debug"})

	args := []string{
		"build",
		"--workdir", workDir,
		"--revision", "deadbee",
		"--trace", "trace.json",
		"--no-color",
	}
	libs := []string{"sys", "ulib", "dev", "implementations"}

	var stdout bytes.Buffer
	res1, err1 := icl.Run(context.Background(), args, env, &stdout, &stdout)
	if err1 != nil {
		t.Fatalf("run1 err: %v\n%s", err1, stdout.String())
	}
	if res1.ExitCode != icl.ExitSuccess {
		t.Fatalf("run1 exit: %d", res1.ExitCode)
	}
	archives1 := make(map[string]string, len(libs))
	for _, lib := range libs {
		archives1[lib] = string(readFile(t, filepath.Join(workDir, "build", "lib"+lib+".a")))
	}
	tr1 := readFile(t, filepath.Join(workDir, "trace.json"))

	res2, err2 := icl.Run(context.Background(), args, env, &stdout, &stdout)
	if err2 != nil {
		t.Fatalf("run2 err: %v", err2)
	}
	if res2.ExitCode != icl.ExitSuccess {
		t.Fatalf("run2 exit: %d", res2.ExitCode)
	}
	for _, lib := range libs {
		if got := string(readFile(t, filepath.Join(workDir, "build", "lib"+lib+".a"))); got != archives1[lib] {
			t.Fatalf("archive lib%s.a differs across identical runs", lib)
		}
	}
	if tr2 := readFile(t, filepath.Join(workDir, "trace.json")); string(tr1) != string(tr2) {
		t.Fatalf("trace differs across identical runs")
	}

	calls := tools.CompilerCalls(t)
	if len(calls) != 8 {
		t.Fatalf("expected 8 compiler calls over two runs, got %d", len(calls))
	}
	for _, c := range calls {
		if !strings.Contains(c, "-DDEBUG") {
			t.Fatalf("debug profile from PROFILE not applied: %q", c)
		}
	}
	if res1.Report.RunID == res2.Report.RunID {
		t.Fatalf("expected distinct run IDs")
	}
}

func TestEndToEnd_FailingStageIsStable(t *testing.T) {
	workDir := t.TempDir()
	tools := toolchaintest.Install(t, false)
	toolchaintest.WriteSources(t, workDir, "src/cpp/sys/a.cc", "src/cpp/ulib/b.cc!")
	env := toolEnv(tools, nil)
	args := []string{"build", "--workdir", workDir, "--revision", "deadbee", "--no-color"}

	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		res, err := icl.Run(context.Background(), args, env, &out, &out)
		if err == nil {
			t.Fatalf("run %d: expected error", i)
		}
		if res.ExitCode != icl.ExitStageFailure {
			t.Fatalf("run %d: expected exit %d got %d", i, icl.ExitStageFailure, res.ExitCode)
		}
		if !strings.Contains(out.String(), "b.cc:1:2: error: forced failure") {
			t.Fatalf("run %d: diagnostics not surfaced:\n%s", i, out.String())
		}
	}
	if _, err := os.Stat(filepath.Join(workDir, "build", "libdev.a")); !os.IsNotExist(err) {
		t.Fatalf("stage after failure must not run, stat err=%v", err)
	}
}

func TestInvalidInvocation_DeterministicAndExplainable(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "relative workdir", args: []string{"build", "--workdir", "relative"}},
		{name: "unknown flag", args: []string{"build", "--workdir", "/tmp", "--mode", "clean"}},
		{name: "unknown target", args: []string{"stages", "--workdir", "/tmp", "--target", "bootloader"}},
		{name: "unknown command", args: []string{"flash"}},
		{name: "stray argument", args: []string{"build", "--workdir", "/tmp", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			res1, err1 := icl.Run(context.Background(), tt.args, icl.MapEnv(nil), &out, &out)
			res2, err2 := icl.Run(context.Background(), tt.args, icl.MapEnv(nil), &out, &out)
			if err1 == nil || err2 == nil {
				t.Fatalf("expected errors")
			}
			if res1.ExitCode != icl.ExitInvalidInvocation || res2.ExitCode != icl.ExitInvalidInvocation {
				t.Fatalf("expected exit %d, got %d and %d", icl.ExitInvalidInvocation, res1.ExitCode, res2.ExitCode)
			}
			if err1.Error() != err2.Error() {
				t.Fatalf("error message not deterministic: %q vs %q", err1, err2)
			}
		})
	}
}

func TestHelp_Succeeds(t *testing.T) {
	var out bytes.Buffer
	res, err := icl.Run(context.Background(), []string{"build", "--help"}, icl.MapEnv(nil), &out, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("expected exit %d got %d", icl.ExitSuccess, res.ExitCode)
	}
	if !strings.Contains(out.String(), "Concurrent builds into the same output directory are not supported") {
		t.Fatalf("help should document the concurrency limitation:\n%s", out.String())
	}
}

func TestStages_ListsRegistryWithHash(t *testing.T) {
	workDir := t.TempDir()
	var out bytes.Buffer
	res, err := icl.Run(context.Background(), []string{"stages", "--workdir", workDir, "--target", "kernel"}, icl.MapEnv(nil), &out, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("expected exit %d got %d", icl.ExitSuccess, res.ExitCode)
	}
	reg := stage.KernelRegistry()
	if !strings.Contains(out.String(), reg.Hash().String()) {
		t.Fatalf("expected registry hash in output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "libkernel.a") {
		t.Fatalf("expected artifact in output:\n%s", out.String())
	}
}

func TestStages_YAMLFeedsRegistryFlag(t *testing.T) {
	workDir := t.TempDir()
	var dump bytes.Buffer
	res, err := icl.Run(context.Background(), []string{"stages", "--workdir", workDir, "--yaml"}, icl.MapEnv(nil), &dump, &dump)
	if err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("dump failed: exit %d err %v", res.ExitCode, err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "stages.yaml"), dump.Bytes(), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	var out bytes.Buffer
	res, err = icl.Run(context.Background(), []string{"stages", "--workdir", workDir, "--registry", "stages.yaml"}, icl.MapEnv(nil), &out, &out)
	if err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("reload failed: exit %d err %v", res.ExitCode, err)
	}
	if !strings.Contains(out.String(), stage.LibraryRegistry().Hash().String()) {
		t.Fatalf("reloaded registry hash differs:\n%s", out.String())
	}
}

func TestStages_BadRegistryIsConfigError(t *testing.T) {
	workDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workDir, "stages.yaml"), []byte("name: x\nbogus: 1\n"), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	var out bytes.Buffer
	res, err := icl.Run(context.Background(), []string{"stages", "--workdir", workDir, "--registry", "stages.yaml"}, icl.MapEnv(nil), &out, &out)
	if err == nil {
		t.Fatalf("expected error")
	}
	if res.ExitCode != icl.ExitConfigError {
		t.Fatalf("expected exit %d got %d", icl.ExitConfigError, res.ExitCode)
	}
}
