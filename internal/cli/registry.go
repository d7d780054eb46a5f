package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"kernbuild/internal/stage"
)

// LoadRegistryFile reads a stage registry from a YAML file.
//
// The loader is strict:
//   - Unknown fields are rejected (to avoid silent divergence).
//   - A second YAML document is rejected.
//   - The result is validated before it is returned.
func LoadRegistryFile(path string) (stage.Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return stage.Registry{}, fmt.Errorf("read registry: %w", err)
	}
	var reg stage.Registry
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&reg); err != nil {
		if err == io.EOF {
			return stage.Registry{}, fmt.Errorf("parse registry yaml: empty document")
		}
		return stage.Registry{}, fmt.Errorf("parse registry yaml: %w", err)
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return stage.Registry{}, fmt.Errorf("parse registry yaml: trailing document")
		}
		return stage.Registry{}, fmt.Errorf("parse registry yaml: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return stage.Registry{}, err
	}
	return reg, nil
}

// WriteRegistryYAML encodes reg in the format LoadRegistryFile accepts.
func WriteRegistryYAML(w io.Writer, reg stage.Registry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(reg); err != nil {
		return err
	}
	return enc.Close()
}

func loadRegistry(inv Invocation) (stage.Registry, error) {
	if inv.RegistryPath != "" {
		return LoadRegistryFile(inv.RegistryPath)
	}
	reg, ok := stage.Builtin(inv.Target)
	if !ok {
		return stage.Registry{}, fmt.Errorf("unknown target %q", inv.Target)
	}
	return reg, nil
}
