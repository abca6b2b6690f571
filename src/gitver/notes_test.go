package gitver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

func commitFile(t *testing.T, repo *git.Repository, dir, name, msg string) plumbing.Hash {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(msg), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig()})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash
}

func TestReleaseNotesSincePreviousTag(t *testing.T) {
	dir, repo, first := initRepo(t)
	if _, err := repo.CreateTag("v1.0.0", first, nil); err != nil {
		t.Fatal(err)
	}
	commitFile(t, repo, dir, "a.go", "feat(cli): add toolchain command")
	commitFile(t, repo, dir, "b.go", "fix: handle empty tag")
	commitFile(t, repo, dir, "c.go", "refactor!: rename upload options")
	head := commitFile(t, repo, dir, "d.go", "update readme")
	if _, err := repo.CreateTag("v1.1.0", head, nil); err != nil {
		t.Fatal(err)
	}

	commits, err := CommitsSincePreviousTag(dir)
	if err != nil {
		t.Fatalf("CommitsSincePreviousTag: %v", err)
	}
	if len(commits) != 4 {
		t.Fatalf("commits = %d, want 4: %+v", len(commits), commits)
	}

	notes, err := ReleaseNotes(dir)
	if err != nil {
		t.Fatalf("ReleaseNotes: %v", err)
	}
	for _, want := range []string{
		"### Breaking Changes\n\n- rename upload options",
		"### Features\n\n- **cli**: add toolchain command",
		"### Bug Fixes\n\n- handle empty tag",
		"### Other Changes\n\n- update readme",
	} {
		if !strings.Contains(notes, want) {
			t.Errorf("notes missing %q:\n%s", want, notes)
		}
	}
	if strings.Contains(notes, "initial") {
		t.Errorf("notes include commits from the previous release:\n%s", notes)
	}
	if strings.Index(notes, "Breaking") > strings.Index(notes, "Features") {
		t.Errorf("breaking changes not listed first:\n%s", notes)
	}
}

func TestReleaseNotesWithoutTags(t *testing.T) {
	dir, _, _ := initRepo(t)
	commits, err := CommitsSincePreviousTag(dir)
	if err != nil {
		t.Fatalf("CommitsSincePreviousTag: %v", err)
	}
	if len(commits) != 1 || commits[0].Summary != "initial" {
		t.Errorf("commits = %+v", commits)
	}
}
