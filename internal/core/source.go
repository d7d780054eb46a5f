package core

import (
	"sort"
	"strings"
)

// SourceFile is a single compilable unit found during discovery.
//
// It is created fresh on every run and never mutated afterwards.
type SourceFile struct {
	// Path is the file path as found under the discovery root.
	Path string

	// Ext is the extension without the leading dot ("cpp", "S").
	Ext string
}

// ExtensionSet is an exact, case-sensitive set of file extensions.
// Members are stored without a leading dot.
type ExtensionSet map[string]struct{}

// NewExtensionSet builds a set from the given extensions.
// A single leading dot is stripped, so "cpp" and ".cpp" are the same member.
// Empty entries are ignored.
func NewExtensionSet(exts ...string) ExtensionSet {
	set := make(ExtensionSet, len(exts))
	for _, e := range exts {
		e = strings.TrimPrefix(e, ".")
		if e == "" {
			continue
		}
		set[e] = struct{}{}
	}
	return set
}

// Contains reports whether ext is a member. The empty extension is never a member.
func (s ExtensionSet) Contains(ext string) bool {
	if ext == "" {
		return false
	}
	_, ok := s[ext]
	return ok
}

// Sorted returns the members in lexical order.
func (s ExtensionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// extensionOf returns the text after the final dot of a base name.
// Names without a dot, dotfiles (".clang-format") and names ending in a dot
// have no extension.
func extensionOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i+1:]
}
