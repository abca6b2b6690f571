// Package forge provides a platform-agnostic view of release asset storage
// on git forges (GitHub, Gitea/Forgejo, GitLab). The uploader only talks to
// ReleaseStore, so publishing works the same wherever the repo is hosted.
package forge

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Provider identifies a git forge platform.
type Provider string

const (
	GitLab  Provider = "gitlab"
	GitHub  Provider = "github"
	Gitea   Provider = "gitea"
	Unknown Provider = "unknown"
)

// ReleaseStore is the set of release operations every platform implements.
type ReleaseStore interface {
	// Provider returns which platform this store represents.
	Provider() Provider

	// ReleaseByTag returns the release for tag. A missing release is an
	// *APIError for which IsNotFound reports true.
	ReleaseByTag(ctx context.Context, tag string) (*Release, error)

	// ReleaseByName finds a release by its display name.
	ReleaseByName(ctx context.Context, name string) (*Release, error)

	CreateRelease(ctx context.Context, opts ReleaseOptions) (*Release, error)

	ListAssets(ctx context.Context, rel *Release) ([]Asset, error)
	DeleteAsset(ctx context.Context, rel *Release, asset Asset) error

	// UploadAsset streams up.Body to the release and returns the stored asset.
	UploadAsset(ctx context.Context, rel *Release, up Upload) (*Asset, error)
}

// ReleaseOptions configures a new release.
type ReleaseOptions struct {
	TagName     string
	Name        string
	Description string // markdown body
	Ref         string // commit for a tag that does not exist yet
	Draft       bool
	Prerelease  bool
}

// Release is an existing release on a forge.
type Release struct {
	ID      string // platform-specific ID (GitLab uses the tag)
	TagName string
	Name    string
	URL     string // web URL to the release page
}

// Asset is a file attached to a release.
type Asset struct {
	ID          string
	Name        string
	Size        int64
	DownloadURL string
}

// Upload is a file to attach to a release.
type Upload struct {
	Name      string
	MediaType string
	Size      int64
	Body      io.Reader
}

// Options configures a ReleaseStore.
type Options struct {
	Provider Provider
	APIURL   string // empty selects the public instance (GitHub only)
	Token    string
	Repo     string // "owner/repo" or GitLab "group/subgroup/project"
}

// New creates the ReleaseStore for opts.Provider. An empty provider is
// detected from the API URL.
func New(opts Options) (ReleaseStore, error) {
	p := opts.Provider
	if p == "" {
		p = DetectProvider(opts.APIURL)
	}

	switch p {
	case GitHub:
		owner, repo, err := splitRepo(opts.Repo)
		if err != nil {
			return nil, err
		}
		return NewGitHub(opts.APIURL, opts.Token, owner, repo), nil
	case Gitea:
		if opts.APIURL == "" {
			return nil, fmt.Errorf("gitea: api url is required")
		}
		owner, repo, err := splitRepo(opts.Repo)
		if err != nil {
			return nil, err
		}
		return NewGitea(opts.APIURL, opts.Token, owner, repo), nil
	case GitLab:
		base := opts.APIURL
		if base == "" {
			base = "https://gitlab.com"
		}
		if opts.Repo == "" {
			return nil, fmt.Errorf("gitlab: project path is required")
		}
		return NewGitLab(base, opts.Token, opts.Repo), nil
	default:
		return nil, fmt.Errorf("unsupported forge %q", p)
	}
}

func splitRepo(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("repository %q is not in owner/repo form", s)
	}
	return owner, repo, nil
}
