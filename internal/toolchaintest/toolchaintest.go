// Package toolchaintest provides shell-script stand-ins for the cross
// compiler, archiver and git so builds can be exercised without a RISC-V
// toolchain installed.
package toolchaintest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FailMarker makes the fake compiler reject any source file containing it.
const FailMarker = "#error"

// The fake compiler appends its full argument list to cc.log next to itself,
// fails with a gcc-style diagnostic when the source contains FailMarker and
// otherwise writes a one-line "object" naming the source.
const compilerScript = `#!/bin/sh
echo "$@" >> "$(dirname "$0")/cc.log"
out=""
src=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    -c) src="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if grep -q '` + FailMarker + `' "$src"; then
  echo "$src:1:2: error: forced failure" >&2
  exit 1
fi
echo "object $src" > "$out"
`

// The fake archiver concatenates the objects into the archive.
// Its argument list is appended to ar.log.
const archiverScript = `#!/bin/sh
echo "$@" >> "$(dirname "$0")/ar.log"
shift
archive="$1"
shift
: > "$archive"
for o in "$@"; do
  cat "$o" >> "$archive"
done
`

// The strict archiver refuses to create an archive without members.
const strictArchiverScript = `#!/bin/sh
echo "$@" >> "$(dirname "$0")/ar.log"
if [ $# -le 2 ]; then
  echo "ar: no archive members specified" >&2
  exit 1
fi
shift
archive="$1"
shift
: > "$archive"
for o in "$@"; do
  cat "$o" >> "$archive"
done
`

// Tools is a fake toolchain installed in a temporary directory.
type Tools struct {
	Dir      string
	Compiler string
	Archiver string
}

// Install writes the fake compiler and archiver into a fresh temp directory.
// With strict set, the archiver fails on an empty object list.
func Install(t *testing.T, strict bool) Tools {
	t.Helper()
	dir := t.TempDir()
	ar := archiverScript
	if strict {
		ar = strictArchiverScript
	}
	return Tools{
		Dir:      dir,
		Compiler: writeScript(t, dir, "fake-cc", compilerScript),
		Archiver: writeScript(t, dir, "fake-ar", ar),
	}
}

// CompilerCalls returns one line per compiler invocation.
func (tt Tools) CompilerCalls(t *testing.T) []string {
	t.Helper()
	return readLines(t, filepath.Join(tt.Dir, "cc.log"))
}

// ArchiverCalls returns one line per archiver invocation.
func (tt Tools) ArchiverCalls(t *testing.T) []string {
	t.Helper()
	return readLines(t, filepath.Join(tt.Dir, "ar.log"))
}

// FakeGit writes a git stand-in that prints rev for `rev-parse`, or fails
// with a "not a git repository" message when rev is empty.
func FakeGit(t *testing.T, rev string) string {
	t.Helper()
	body := "#!/bin/sh\necho \"" + rev + "\"\n"
	if rev == "" {
		body = "#!/bin/sh\necho 'fatal: not a git repository' >&2\nexit 128\n"
	}
	return writeScript(t, t.TempDir(), "git", body)
}

// WriteSources creates the given files (slash-separated, relative to root)
// with a comment naming each one. Files whose name ends in "!" are written
// without the "!" and with FailMarker in their content.
func WriteSources(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		content := "// " + r + "\n"
		if strings.HasSuffix(r, "!") {
			r = strings.TrimSuffix(r, "!")
			content = FailMarker + " broken\n"
		}
		p := filepath.Join(root, filepath.FromSlash(r))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", p, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	s := strings.TrimRight(string(b), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
