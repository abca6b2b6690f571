package output

import (
	"fmt"
	"io"
	"os"
	"time"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

func IsGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// Collapsible log groups. GitHub Actions uses ::group:: workflow commands,
// GitLab uses section_start/section_end markers. Elsewhere these are no-ops.

func SectionStart(w io.Writer, id, name string) {
	switch {
	case IsGitHubActions():
		fmt.Fprintf(w, "::group::%s\n", name)
	case IsGitLabCI():
		ts := time.Now().Unix()
		fmt.Fprintf(w, "\033[0Ksection_start:%d:%s\r\033[0K%s\n", ts, id, name)
	}
}

func SectionEnd(w io.Writer, id string) {
	switch {
	case IsGitHubActions():
		fmt.Fprintln(w, "::endgroup::")
	case IsGitLabCI():
		ts := time.Now().Unix()
		fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", ts, id)
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// IsTerminal reports whether stderr is an interactive terminal.
func IsTerminal() bool {
	return isTerminal(os.Stderr)
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal(os.Stdout) || IsCI()
}
