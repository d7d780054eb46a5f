package stage

import "kernbuild/internal/core"

// Root is one source directory of a stage.
// Relative directories are resolved against the orchestrator's work directory.
type Root struct {
	Dir     string `yaml:"dir"`
	Recurse bool   `yaml:"recurse"`
}

// Descriptor declares one compiled unit.
type Descriptor struct {
	// Name identifies the stage in reports, traces and errors.
	Name string `yaml:"name"`

	// Ordinal is the declared build position. Strictly increasing across a registry.
	Ordinal int `yaml:"ordinal"`

	// Roots are walked in declaration order; their files are concatenated.
	Roots []Root `yaml:"roots"`

	// Extensions is the exact, case-sensitive extension filter ("cc", "S").
	Extensions []string `yaml:"extensions"`

	// Artifact names the produced static archive (lib<Artifact>.a).
	Artifact string `yaml:"artifact"`

	// Includes are header search directories, appended as -I flags after the shared flag set.
	Includes []string `yaml:"includes,omitempty"`

	// NeedsRevision makes the stage's flags carry the revision define.
	// Such a stage fails when no revision is available.
	NeedsRevision bool `yaml:"needs_revision,omitempty"`
}

// ExtensionSet returns the stage's extension filter.
func (d Descriptor) ExtensionSet() core.ExtensionSet {
	return core.NewExtensionSet(d.Extensions...)
}

// Registry is the ordered stage table of one build target.
type Registry struct {
	Name   string       `yaml:"name"`
	Stages []Descriptor `yaml:"stages"`
}

// RegistryHash is the deterministic identity of a Registry.
// Unlike a dependency graph, declaration order is part of the identity.
type RegistryHash string

func (h RegistryHash) String() string { return string(h) }

// Stage returns the descriptor named name.
func (r Registry) Stage(name string) (Descriptor, bool) {
	for _, d := range r.Stages {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
