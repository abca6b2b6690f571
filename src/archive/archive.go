// Package archive turns a build's isolation directory into the release asset
// file(s) described by a pack.Plan.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/joeycumines/go-release-action/src/build"
	"github.com/joeycumines/go-release-action/src/pack"
)

// ErrPackaging marks a failure to produce an asset file.
var ErrPackaging = errors.New("packaging failed")

// Archiver writes a single archive containing entries.
type Archiver interface {
	Name() string
	Archive(ctx context.Context, format pack.Format, out string, entries []Entry) error
}

// Entry is one top-level archive member. Directories keep their subtree
// under Name.
type Entry struct {
	Path string // on disk
	Name string // in the archive
}

// New returns the archiver for kind ("native" or "command").
func New(kind string, runner build.Runner) (Archiver, error) {
	switch kind {
	case "", "native":
		return Native{}, nil
	case "command":
		return &Command{Runner: runner}, nil
	}
	return nil, fmt.Errorf("%w: unknown archiver %q", ErrPackaging, kind)
}

// Package produces the plan's asset files inside outDir and returns their
// paths. Archive formats yield one file; raw plans yield one copy per binary.
func Package(ctx context.Context, a Archiver, plan *pack.Plan, set *build.ArtifactSet, outDir string) ([]string, error) {
	if plan.Format == pack.FormatNone {
		return copyRaw(plan, outDir)
	}

	entries, err := Entries(set.Binaries, plan.ExtraFiles)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(outDir, plan.FileName)
	if err := a.Archive(ctx, plan.Format, out, entries); err != nil {
		os.Remove(out)
		if errors.Is(err, ErrPackaging) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrPackaging, plan.FileName, err)
	}
	return []string{out}, nil
}

// Entries flattens binaries and extra files to top-level archive members
// named by their base names. Two inputs with the same base name collide.
func Entries(binaries, extra []string) ([]Entry, error) {
	seen := map[string]string{}
	var entries []Entry
	for _, p := range append(append([]string{}, binaries...), extra...) {
		name := filepath.Base(p)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %s and %s both map to %q in the archive", ErrPackaging, prev, p, name)
		}
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPackaging, err)
		}
		seen[name] = p
		entries = append(entries, Entry{Path: p, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// copyRaw copies each binary to its asset file name.
func copyRaw(plan *pack.Plan, outDir string) ([]string, error) {
	var paths []string
	for _, r := range plan.Raw {
		dst := filepath.Join(outDir, r.FileName)
		if dst == r.Binary {
			paths = append(paths, dst)
			continue
		}
		if err := copyFile(r.Binary, dst); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrPackaging, r.FileName, err)
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree copies a file or directory tree from src to dst.
func copyTree(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return copyFile(src, dst)
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(p, target)
	})
}
