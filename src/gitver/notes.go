package gitver

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Commit is a parsed conventional commit.
type Commit struct {
	Hash     string
	Type     string // feat, fix, chore, ...
	Scope    string
	Summary  string
	Body     string
	Breaking bool
}

// CommitCategory is a titled group of commits in the notes.
type CommitCategory struct {
	Title   string
	Prefix  string
	Commits []Commit
}

var conventionalRe = regexp.MustCompile(`^(\w+)(?:\(([^)]+)\))?(!)?\s*:\s*(.+)`)

var categoryOrder = []struct {
	prefix string
	title  string
}{
	{"BREAKING", "Breaking Changes"},
	{"feat", "Features"},
	{"fix", "Bug Fixes"},
	{"perf", "Performance"},
	{"security", "Security"},
	{"refactor", "Refactoring"},
	{"docs", "Documentation"},
	{"test", "Tests"},
	{"ci", "CI/CD"},
	{"build", "Build"},
	{"chore", "Maintenance"},
}

// ReleaseNotes renders markdown notes for the commits between the previous
// tag and HEAD. Without a previous tag every reachable commit is included.
func ReleaseNotes(rootDir string) (string, error) {
	commits, err := CommitsSincePreviousTag(rootDir)
	if err != nil {
		return "", err
	}
	return renderNotes(categorize(commits)), nil
}

// CommitsSincePreviousTag walks back from HEAD and stops at the first
// commit, other than HEAD itself, that carries a tag.
func CommitsSincePreviousTag(rootDir string) ([]Commit, error) {
	repo, err := git.PlainOpenWithOptions(rootDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	tagged, err := taggedCommits(repo)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Hash != head.Hash() && tagged[c.Hash] {
			return storer.ErrStop
		}
		commits = append(commits, parseCommit(c))
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("walking log: %w", err)
	}
	return commits, nil
}

func taggedCommits(repo *git.Repository) (map[plumbing.Hash]bool, error) {
	tags, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	out := map[plumbing.Hash]bool{}
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if obj, err := repo.TagObject(hash); err == nil {
			if c, err := obj.Commit(); err == nil {
				hash = c.Hash
			}
		}
		out[hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading tags: %w", err)
	}
	return out, nil
}

func parseCommit(c *object.Commit) Commit {
	subject, body, _ := strings.Cut(c.Message, "\n")
	out := Commit{
		Hash:    c.Hash.String()[:7],
		Summary: strings.TrimSpace(subject),
		Body:    strings.TrimSpace(body),
	}
	if m := conventionalRe.FindStringSubmatch(out.Summary); m != nil {
		out.Type = strings.ToLower(m[1])
		out.Scope = m[2]
		out.Breaking = m[3] == "!"
		out.Summary = m[4]
	}
	if strings.Contains(strings.ToUpper(out.Body), "BREAKING CHANGE") {
		out.Breaking = true
	}
	return out
}

func categorize(commits []Commit) []CommitCategory {
	buckets := make(map[string][]Commit)
	for _, c := range commits {
		key := c.Type
		if c.Breaking {
			key = "BREAKING"
		}
		buckets[key] = append(buckets[key], c)
	}

	var categories []CommitCategory
	for _, cat := range categoryOrder {
		if cs, ok := buckets[cat.prefix]; ok {
			categories = append(categories, CommitCategory{Title: cat.title, Prefix: cat.prefix, Commits: cs})
			delete(buckets, cat.prefix)
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var other []Commit
	for _, k := range keys {
		other = append(other, buckets[k]...)
	}
	if len(other) > 0 {
		categories = append(categories, CommitCategory{Title: "Other Changes", Prefix: "other", Commits: other})
	}
	return categories
}

func renderNotes(categories []CommitCategory) string {
	var b strings.Builder
	for _, cat := range categories {
		fmt.Fprintf(&b, "### %s\n\n", cat.Title)
		for _, c := range cat.Commits {
			scope := ""
			if c.Scope != "" {
				scope = fmt.Sprintf("**%s**: ", c.Scope)
			}
			fmt.Fprintf(&b, "- %s%s (%s)\n", scope, c.Summary, c.Hash)
		}
		b.WriteString("\n")
	}
	return b.String()
}
