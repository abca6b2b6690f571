// Package gitver reads release metadata from the local git checkout. It
// supplies the release tag when neither the configuration nor the CI event
// names one.
package gitver

import (
	"errors"
	"fmt"
	"sort"

	masterminds "github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNoTag is returned by TagAtHead when HEAD carries no tag.
var ErrNoTag = errors.New("no tag points at HEAD")

// VersionInfo holds release metadata from git.
type VersionInfo struct {
	Tag        string   // highest tag at HEAD, "" when untagged
	TagsAtHead []string // every tag at HEAD, highest first
	SHA        string   // short commit hash
	Branch     string   // "" for a detached HEAD
	IsRelease  bool     // true if HEAD is exactly at a tag
}

// DetectVersion inspects the repository containing rootDir.
func DetectVersion(rootDir string) (*VersionInfo, error) {
	repo, err := git.PlainOpenWithOptions(rootDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	v := &VersionInfo{SHA: head.Hash().String()[:7]}
	if head.Name().IsBranch() {
		v.Branch = head.Name().Short()
	}

	tags, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		// Annotated tags point at a tag object; peel to the commit.
		if obj, err := repo.TagObject(hash); err == nil {
			if c, err := obj.Commit(); err == nil {
				hash = c.Hash
			}
		}
		if hash == head.Hash() {
			v.TagsAtHead = append(v.TagsAtHead, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading tags: %w", err)
	}

	sortTags(v.TagsAtHead)
	if len(v.TagsAtHead) > 0 {
		v.Tag = v.TagsAtHead[0]
		v.IsRelease = true
	}
	return v, nil
}

// TagAtHead returns the highest tag pointing at HEAD.
func TagAtHead(rootDir string) (string, error) {
	v, err := DetectVersion(rootDir)
	if err != nil {
		return "", err
	}
	if v.Tag == "" {
		return "", ErrNoTag
	}
	return v.Tag, nil
}

// sortTags orders semver tags highest first, then any others by name.
func sortTags(tags []string) {
	sort.SliceStable(tags, func(i, j int) bool {
		vi, ei := masterminds.NewVersion(tags[i])
		vj, ej := masterminds.NewVersion(tags[j])
		switch {
		case ei == nil && ej == nil:
			return vi.GreaterThan(vj)
		case ei == nil:
			return true
		case ej == nil:
			return false
		}
		return tags[i] < tags[j]
	})
}
