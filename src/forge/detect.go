package forge

import "strings"

// DetectProvider determines the forge platform from an API or remote URL.
// An empty URL means the public GitHub API.
func DetectProvider(rawURL string) Provider {
	lower := strings.ToLower(rawURL)

	switch {
	case lower == "", strings.Contains(lower, "github"):
		return GitHub
	case strings.Contains(lower, "gitlab"):
		return GitLab
	case strings.Contains(lower, "gitea") || strings.Contains(lower, "forgejo") || strings.Contains(lower, "codeberg"):
		return Gitea
	default:
		return Unknown
	}
}
