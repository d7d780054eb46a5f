package core

import (
	"fmt"
	"strings"
	"sync"
)

// Profile selects between debug and release builds.
type Profile string

const (
	ProfileDebug   Profile = "debug"
	ProfileRelease Profile = "release"
)

// ParseProfile maps a raw profile value to a Profile.
// Only the exact value "debug" selects the debug profile; anything else,
// including the empty string, is a release build.
func ParseProfile(raw string) Profile {
	if strings.TrimSpace(raw) == string(ProfileDebug) {
		return ProfileDebug
	}
	return ProfileRelease
}

const (
	// DebugDefine is appended for the debug profile.
	DebugDefine = "-DDEBUG"

	// RevisionMacro is the preprocessor macro carrying the short revision.
	// Kernel sources use it as a string literal.
	RevisionMacro = "GIT_HASH"
)

// freestandingPrefix is shared by every stage. The target has no OS
// underneath, so nothing from the hosted runtime may be assumed.
var freestandingPrefix = []string{
	"-march=rv64gc",
	"-mabi=lp64d",
	"-mcmodel=medany",
	"-ffreestanding",
	"-nostdlib",
	"-fno-exceptions",
	"-fno-rtti",
	"-fno-use-cxa-atexit",
	"-std=c++20",
}

// FreestandingPrefix returns a copy of the fixed flag prefix.
func FreestandingPrefix() FlagSet {
	return FlagSet(nil).Append(freestandingPrefix...)
}

// RevisionDefine returns the flag defining RevisionMacro as the string rev.
func RevisionDefine(rev string) string {
	return fmt.Sprintf("-D%s=%q", RevisionMacro, rev)
}

// FlagSet is an ordered compiler flag sequence.
//
// Flags are append-only and never reordered: later flags override earlier
// ones in compiler flag parsing.
type FlagSet []string

// Append returns a new FlagSet with flags added at the end.
// The receiver is never modified.
func (f FlagSet) Append(flags ...string) FlagSet {
	out := make(FlagSet, 0, len(f)+len(flags))
	out = append(out, f...)
	return append(out, flags...)
}

// Contains reports whether flag appears verbatim.
func (f FlagSet) Contains(flag string) bool {
	for _, x := range f {
		if x == flag {
			return true
		}
	}
	return false
}

func (f FlagSet) String() string { return strings.Join(f, " ") }

// BuildFlags assembles the flag set for a profile and an optional revision.
// An empty revision means "no revision define".
//
// BuildFlags is pure: identical inputs yield identical sequences.
func BuildFlags(profile Profile, revision string) FlagSet {
	flags := FreestandingPrefix()
	if profile == ProfileDebug {
		flags = flags.Append(DebugDefine)
	}
	if revision != "" {
		flags = flags.Append(RevisionDefine(revision))
	}
	return flags
}

// FlagSetBuilder memoizes BuildFlags per (profile, revision).
// It is safe for concurrent use. The zero value is ready to use.
type FlagSetBuilder struct {
	mu   sync.Mutex
	memo map[flagKey]FlagSet
}

type flagKey struct {
	profile  Profile
	revision string
}

// NewFlagSetBuilder creates an empty builder.
func NewFlagSetBuilder() *FlagSetBuilder {
	return &FlagSetBuilder{}
}

// Build returns the flag set for the inputs. Callers get their own copy.
func (b *FlagSetBuilder) Build(profile Profile, revision string) FlagSet {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.memo == nil {
		b.memo = make(map[flagKey]FlagSet)
	}
	key := flagKey{profile: profile, revision: revision}
	flags, ok := b.memo[key]
	if !ok {
		flags = BuildFlags(profile, revision)
		b.memo[key] = flags
	}
	return flags.Append()
}
