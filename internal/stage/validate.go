package stage

import "strings"

// Validate checks the registry's structural invariants:
//   - at least one stage
//   - every stage has a name, an artifact, at least one root and one extension
//   - stage names and artifact names are unique
//   - ordinals are strictly increasing in declaration order
//
// Validate does not check that roots exist: missing roots contribute no files.
func (r Registry) Validate() error {
	if len(r.Stages) == 0 {
		return invalidf("registry %q declares no stages", r.Name)
	}

	names := make(map[string]struct{}, len(r.Stages))
	artifacts := make(map[string]struct{}, len(r.Stages))
	for i, d := range r.Stages {
		if strings.TrimSpace(d.Name) == "" {
			return invalidf("stages[%d]: name is empty", i)
		}
		if _, dup := names[d.Name]; dup {
			return invalidf("duplicate stage name %q", d.Name)
		}
		names[d.Name] = struct{}{}

		if strings.TrimSpace(d.Artifact) == "" {
			return invalidf("stage %q: artifact is empty", d.Name)
		}
		if strings.ContainsAny(d.Artifact, `/\`) {
			return invalidf("stage %q: artifact %q must not contain path separators", d.Name, d.Artifact)
		}
		if _, dup := artifacts[d.Artifact]; dup {
			return invalidf("duplicate artifact %q", d.Artifact)
		}
		artifacts[d.Artifact] = struct{}{}

		if len(d.Roots) == 0 {
			return invalidf("stage %q: no roots declared", d.Name)
		}
		for j, root := range d.Roots {
			if strings.TrimSpace(root.Dir) == "" {
				return invalidf("stage %q: roots[%d] has an empty dir", d.Name, j)
			}
		}
		if len(d.ExtensionSet()) == 0 {
			return invalidf("stage %q: no extensions declared", d.Name)
		}

		if i > 0 && d.Ordinal <= r.Stages[i-1].Ordinal {
			return orderError(r.Stages[i-1], d)
		}
	}
	return nil
}
