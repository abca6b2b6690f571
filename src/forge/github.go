package forge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GitHubForge implements ReleaseStore for GitHub and GitHub Enterprise.
type GitHubForge struct {
	BaseURL   string // "https://api.github.com" or "https://ghes.example.com/api/v3"
	UploadURL string // asset upload host; derived from BaseURL when empty
	Token     string
	Owner     string
	Repo      string

	api
}

// NewGitHub creates a GitHub client. apiURL is the REST API base as found in
// GITHUB_API_URL; empty means github.com.
func NewGitHub(apiURL, token, owner, repo string) *GitHubForge {
	base := strings.TrimRight(apiURL, "/")
	if base == "" {
		base = "https://api.github.com"
	}

	g := &GitHubForge{
		BaseURL: base,
		Token:   token,
		Owner:   owner,
		Repo:    repo,
	}
	g.api = api{
		forge: GitHub,
		auth: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+g.Token)
			r.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		},
	}
	return g
}

func (g *GitHubForge) Provider() Provider { return GitHub }

func (g *GitHubForge) apiURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s%s", g.BaseURL, g.Owner, g.Repo, path)
}

// uploadBaseURL returns the upload API base for asset uploads.
// github.com uses uploads.github.com; GHES uses {host}/api/uploads.
func (g *GitHubForge) uploadBaseURL() string {
	if g.UploadURL != "" {
		return strings.TrimRight(g.UploadURL, "/")
	}
	if strings.Contains(g.BaseURL, "api.github.com") {
		return "https://uploads.github.com"
	}
	return strings.Replace(g.BaseURL, "/api/v3", "/api/uploads", 1)
}

type githubRelease struct {
	ID      int64  `json:"id"`
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

func (r githubRelease) release() *Release {
	return &Release{
		ID:      fmt.Sprintf("%d", r.ID),
		TagName: r.TagName,
		Name:    r.Name,
		URL:     r.HTMLURL,
	}
}

type githubAsset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

func (a githubAsset) asset() Asset {
	return Asset{
		ID:          fmt.Sprintf("%d", a.ID),
		Name:        a.Name,
		Size:        a.Size,
		DownloadURL: a.BrowserDownloadURL,
	}
}

func (g *GitHubForge) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	var rel githubRelease
	if err := g.doJSON(ctx, http.MethodGet, g.apiURL("/releases/tags/"+url.PathEscape(tag)), nil, &rel); err != nil {
		return nil, err
	}
	return rel.release(), nil
}

func (g *GitHubForge) ReleaseByName(ctx context.Context, name string) (*Release, error) {
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s?per_page=100&page=%d", g.apiURL("/releases"), page)

		var releases []githubRelease
		if err := g.doJSON(ctx, http.MethodGet, u, nil, &releases); err != nil {
			return nil, err
		}
		for _, r := range releases {
			if r.Name == name {
				return r.release(), nil
			}
		}
		if len(releases) < 100 {
			break
		}
	}
	return nil, &APIError{Forge: GitHub, Method: http.MethodGet, URL: g.apiURL("/releases"), StatusCode: http.StatusNotFound, Body: "no release named " + name}
}

func (g *GitHubForge) CreateRelease(ctx context.Context, opts ReleaseOptions) (*Release, error) {
	payload := map[string]any{
		"tag_name":   opts.TagName,
		"name":       opts.Name,
		"body":       opts.Description,
		"draft":      opts.Draft,
		"prerelease": opts.Prerelease,
	}
	if opts.Ref != "" {
		payload["target_commitish"] = opts.Ref
	}

	var rel githubRelease
	if err := g.doJSON(ctx, http.MethodPost, g.apiURL("/releases"), payload, &rel); err != nil {
		return nil, err
	}
	return rel.release(), nil
}

func (g *GitHubForge) ListAssets(ctx context.Context, rel *Release) ([]Asset, error) {
	var all []Asset
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s?per_page=100&page=%d", g.apiURL("/releases/"+rel.ID+"/assets"), page)

		var assets []githubAsset
		if err := g.doJSON(ctx, http.MethodGet, u, nil, &assets); err != nil {
			return all, err
		}
		for _, a := range assets {
			all = append(all, a.asset())
		}
		if len(assets) < 100 {
			break
		}
	}
	return all, nil
}

func (g *GitHubForge) DeleteAsset(ctx context.Context, rel *Release, asset Asset) error {
	return g.doJSON(ctx, http.MethodDelete, g.apiURL("/releases/assets/"+asset.ID), nil, nil)
}

func (g *GitHubForge) UploadAsset(ctx context.Context, rel *Release, up Upload) (*Asset, error) {
	uploadURL := fmt.Sprintf("%s/repos/%s/%s/releases/%s/assets?name=%s",
		g.uploadBaseURL(), g.Owner, g.Repo, rel.ID, url.QueryEscape(up.Name))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, up.Body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = up.Size
	mediaType := up.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", mediaType)

	var a githubAsset
	if err := g.do(req, &a); err != nil {
		return nil, err
	}
	out := a.asset()
	return &out, nil
}
