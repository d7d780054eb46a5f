package core

// Artifact is the static archive produced by one stage.
type Artifact struct {
	// Name is the stage's artifact name ("sys", "kernel").
	Name string

	// Path is the archive location, lib<Name>.a under the output directory.
	Path string

	// Objects lists the object files archived, in source order.
	Objects []string
}
