package stage

import "sort"

const (
	TargetLibraries = "libraries"
	TargetKernel    = "kernel"
)

// LibraryRegistry builds the kernel layers as separate archives:
// system primitives, the user-space support library, device drivers, and
// finally every remaining C++/assembly implementation under src.
//
// The first three stages take .cc sources only so that the final stage, which
// walks all of src for .cpp and .S, never compiles a file twice.
func LibraryRegistry() Registry {
	includes := []string{"src/cpp"}
	return Registry{
		Name: TargetLibraries,
		Stages: []Descriptor{
			{
				Name:       "sys",
				Ordinal:    1,
				Roots:      []Root{{Dir: "src/cpp/sys", Recurse: false}},
				Extensions: []string{"cc"},
				Artifact:   "sys",
				Includes:   includes,
			},
			{
				Name:       "ulib",
				Ordinal:    2,
				Roots:      []Root{{Dir: "src/cpp/ulib", Recurse: false}},
				Extensions: []string{"cc"},
				Artifact:   "ulib",
				Includes:   includes,
			},
			{
				Name:       "dev",
				Ordinal:    3,
				Roots:      []Root{{Dir: "src/cpp/dev", Recurse: true}},
				Extensions: []string{"cc"},
				Artifact:   "dev",
				Includes:   includes,
			},
			{
				Name:          "implementations",
				Ordinal:       4,
				Roots:         []Root{{Dir: "src", Recurse: true}},
				Extensions:    []string{"cpp", "S"},
				Artifact:      "implementations",
				Includes:      includes,
				NeedsRevision: true,
			},
		},
	}
}

// KernelRegistry compiles architecture/boot code, memory management and the
// kernel core together into a single "kernel" archive.
func KernelRegistry() Registry {
	return Registry{
		Name: TargetKernel,
		Stages: []Descriptor{
			{
				Name:    "kernel",
				Ordinal: 1,
				Roots: []Root{
					{Dir: "src/arch", Recurse: true},
					{Dir: "src/mem", Recurse: true},
					{Dir: "src/sys", Recurse: true},
				},
				Extensions:    []string{"cpp", "S"},
				Artifact:      "kernel",
				Includes:      []string{"inc", "src"},
				NeedsRevision: true,
			},
		},
	}
}

var builtins = map[string]func() Registry{
	TargetLibraries: LibraryRegistry,
	TargetKernel:    KernelRegistry,
}

// Builtin returns the built-in registry for a target name.
func Builtin(target string) (Registry, bool) {
	fn, ok := builtins[target]
	if !ok {
		return Registry{}, false
	}
	return fn(), true
}

// BuiltinTargets lists the built-in target names in lexical order.
func BuiltinTargets() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
