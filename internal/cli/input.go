package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"kernbuild/internal/core"
	"kernbuild/internal/stage"
)

const (
	ExitSuccess           = 0
	ExitStageFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Environment variables consulted at the CLI boundary, and only there.
const (
	EnvProfile      = "KERNBUILD_PROFILE"
	EnvCargoProfile = "PROFILE"
	EnvCompiler     = "CXX"
	EnvArchiver     = "AR"
)

// LookupEnv is the signature of os.LookupEnv. Tests pass a map-backed function.
type LookupEnv func(key string) (string, bool)

// MapEnv adapts a map to LookupEnv.
func MapEnv(m map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

type TraceConfig struct {
	Enabled bool
	Path    string
}

// Options are raw flag values as typed by the user.
type Options struct {
	WorkDir   string
	Target    string
	Registry  string
	OutputDir string
	Profile   string
	Revision  string
	Compiler  string
	Archiver  string
	Trace     string
	Jobs      int
	Verbose   bool
	NoColor   bool
}

// Invocation is the fully canonicalized description of a build.
//
// All paths are normalized (Clean) and all relative paths are resolved
// relative to WorkDir. Environment-derived values (profile, toolchain) are
// resolved once here so nothing downstream reads the environment.
type Invocation struct {
	WorkDir      string
	Target       string
	RegistryPath string
	OutputDir    string
	Profile      core.Profile
	Revision     string
	Compiler     string
	Archiver     string
	Jobs         int
	Trace        TraceConfig
	Verbose      bool
	NoColor      bool
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ParseInvocation canonicalizes raw options into an Invocation.
//
// Precedence for the profile: --profile, then KERNBUILD_PROFILE, then PROFILE.
// Precedence for the toolchain: --cc/--ar, then CXX/AR, then the riscv64 defaults.
func ParseInvocation(opts Options, env LookupEnv) (Invocation, error) {
	if env == nil {
		env = MapEnv(nil)
	}

	if strings.TrimSpace(opts.WorkDir) == "" {
		return Invocation{}, invalidInvocationf("--workdir is required")
	}
	workDir := filepath.Clean(opts.WorkDir)
	if !filepath.IsAbs(workDir) {
		return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", opts.WorkDir)
	}

	inv := Invocation{
		WorkDir:  workDir,
		Revision: strings.TrimSpace(opts.Revision),
		Jobs:     opts.Jobs,
		Verbose:  opts.Verbose,
		NoColor:  opts.NoColor,
	}

	if strings.TrimSpace(opts.Registry) != "" {
		p, err := resolveUnderWorkDir(workDir, opts.Registry)
		if err != nil {
			return Invocation{}, err
		}
		inv.RegistryPath = p
	} else {
		target := strings.TrimSpace(opts.Target)
		if target == "" {
			target = stage.TargetLibraries
		}
		if _, ok := stage.Builtin(target); !ok {
			return Invocation{}, invalidInvocationf("unknown --target %q (expected %s)", opts.Target, strings.Join(stage.BuiltinTargets(), "|"))
		}
		inv.Target = target
	}

	outputDir := opts.OutputDir
	if strings.TrimSpace(outputDir) == "" {
		outputDir = "build"
	}
	resolvedOut, err := resolveUnderWorkDir(workDir, outputDir)
	if err != nil {
		return Invocation{}, err
	}
	inv.OutputDir = resolvedOut

	inv.Profile = core.ParseProfile(firstNonEmpty(opts.Profile, lookup(env, EnvProfile), lookup(env, EnvCargoProfile)))
	inv.Compiler = firstNonEmpty(opts.Compiler, lookup(env, EnvCompiler), core.DefaultCompiler)
	inv.Archiver = firstNonEmpty(opts.Archiver, lookup(env, EnvArchiver), core.DefaultArchiver)

	if inv.Jobs == 0 {
		inv.Jobs = 1
	}
	if inv.Jobs < 1 {
		return Invocation{}, invalidInvocationf("--jobs must be at least 1 (got %d)", opts.Jobs)
	}

	if strings.TrimSpace(opts.Trace) != "" {
		resolvedTrace, err := resolveUnderWorkDir(workDir, opts.Trace)
		if err != nil {
			return Invocation{}, err
		}
		inv.Trace = TraceConfig{Enabled: true, Path: resolvedTrace}
	}

	return inv, nil
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("path must not be '.'")
	}
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	// WorkDir is required to be absolute, so Join does not consult process CWD.
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

func lookup(env LookupEnv, key string) string {
	v, _ := env(key)
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// ExitCode extracts a semantic exit code from an error.
// If the error is not a known invocation error, it returns ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
