package core

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// readDir is swapped out by tests that need a read failure regardless of
// the permissions the test process holds.
var readDir = os.ReadDir

// Discover walks root and returns every regular file whose extension is an
// exact member of exts.
//
// Tolerance rules:
//   - A root that does not exist, is not a directory or cannot be opened
//     contributes nothing: the result is empty and err is nil.
//   - Entries whose type cannot be determined (broken symlinks, sockets,
//     devices) are skipped.
//   - Files without an extension never match.
//
// A subdirectory that exists but cannot be read is a hard failure of kind
// ErrUnreadableNode, since it means the build environment is misconfigured.
//
// Ordering: the result is strictly sorted by path so that the archive layout
// does not depend on the filesystem's enumeration order.
func Discover(root string, exts ExtensionSet, recurse bool) ([]SourceFile, error) {
	files := []SourceFile{}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return files, nil
	}
	entries, err := readDir(root)
	if err != nil {
		return files, nil
	}

	files, err = discoverEntries(root, entries, exts, recurse, files)
	if err != nil {
		return nil, err
	}

	// CRITICAL: sort explicitly, do not rely on OS directory ordering
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// RootExists reports whether root is an existing directory.
// It is used for reporting only; Discover itself never fails on a missing root.
func RootExists(root string) bool {
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}

func discoverEntries(dir string, entries []fs.DirEntry, exts ExtensionSet, recurse bool, acc []SourceFile) ([]SourceFile, error) {
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		typ := entry.Type()

		switch {
		case typ.IsDir():
			if !recurse {
				continue
			}
			sub, err := readDir(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					// removed while walking
					continue
				}
				return nil, &BuildError{Kind: ErrUnreadableNode, Path: path, Msg: "cannot read directory", Cause: err}
			}
			acc, err = discoverEntries(path, sub, exts, recurse, acc)
			if err != nil {
				return nil, err
			}

		case typ.IsRegular():
			acc = appendIfMatch(acc, path, entry.Name(), exts)

		case typ&fs.ModeSymlink != 0:
			// Symlinked files are followed, symlinked directories are not.
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				continue
			}
			acc = appendIfMatch(acc, path, entry.Name(), exts)
		}
	}
	return acc, nil
}

func appendIfMatch(acc []SourceFile, path, name string, exts ExtensionSet) []SourceFile {
	ext := extensionOf(name)
	if !exts.Contains(ext) {
		return acc
	}
	return append(acc, SourceFile{Path: path, Ext: ext})
}
