package forge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GitLabPackageName is the generic package that holds uploaded release files.
const GitLabPackageName = "release-assets"

// GitLabForge implements ReleaseStore for GitLab instances. Files go to the
// project's generic package registry and are attached to the release as
// asset links.
type GitLabForge struct {
	BaseURL   string // e.g., "https://gitlab.com"
	Token     string // private token or job token
	ProjectID string // numeric ID or "group/project" path

	api
}

// NewGitLab creates a GitLab client. baseURL may be the instance root or
// its /api/v4 endpoint.
func NewGitLab(baseURL, token, projectID string) *GitLabForge {
	g := &GitLabForge{
		BaseURL:   strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/api/v4"),
		Token:     token,
		ProjectID: projectID,
	}
	g.api = api{
		forge: GitLab,
		auth:  func(r *http.Request) { r.Header.Set("PRIVATE-TOKEN", g.Token) },
	}
	return g
}

func (g *GitLabForge) Provider() Provider { return GitLab }

func (g *GitLabForge) apiURL(path string) string {
	return fmt.Sprintf("%s/api/v4/projects/%s%s", g.BaseURL, url.PathEscape(g.ProjectID), path)
}

func (g *GitLabForge) projectWebURL() string {
	return fmt.Sprintf("%s/%s", g.BaseURL, g.ProjectID)
}

type gitlabRelease struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
}

func (g *GitLabForge) release(r gitlabRelease) *Release {
	return &Release{
		ID:      r.TagName,
		TagName: r.TagName,
		Name:    r.Name,
		URL:     fmt.Sprintf("%s/-/releases/%s", g.projectWebURL(), url.PathEscape(r.TagName)),
	}
}

type gitlabLink struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	DirectAssetURL string `json:"direct_asset_url"`
}

func (l gitlabLink) asset() Asset {
	dl := l.DirectAssetURL
	if dl == "" {
		dl = l.URL
	}
	return Asset{
		ID:          fmt.Sprintf("%d", l.ID),
		Name:        l.Name,
		DownloadURL: dl,
	}
}

func (g *GitLabForge) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	var rel gitlabRelease
	if err := g.doJSON(ctx, http.MethodGet, g.apiURL("/releases/"+url.PathEscape(tag)), nil, &rel); err != nil {
		return nil, err
	}
	return g.release(rel), nil
}

func (g *GitLabForge) ReleaseByName(ctx context.Context, name string) (*Release, error) {
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s?per_page=100&page=%d", g.apiURL("/releases"), page)

		var releases []gitlabRelease
		if err := g.doJSON(ctx, http.MethodGet, u, nil, &releases); err != nil {
			return nil, err
		}
		for _, r := range releases {
			if r.Name == name {
				return g.release(r), nil
			}
		}
		if len(releases) < 100 {
			break
		}
	}
	return nil, &APIError{Forge: GitLab, Method: http.MethodGet, URL: g.apiURL("/releases"), StatusCode: http.StatusNotFound, Body: "no release named " + name}
}

func (g *GitLabForge) CreateRelease(ctx context.Context, opts ReleaseOptions) (*Release, error) {
	payload := map[string]any{
		"tag_name":    opts.TagName,
		"name":        opts.Name,
		"description": opts.Description,
	}
	if opts.Ref != "" {
		payload["ref"] = opts.Ref
	}

	var rel gitlabRelease
	if err := g.doJSON(ctx, http.MethodPost, g.apiURL("/releases"), payload, &rel); err != nil {
		return nil, err
	}
	return g.release(rel), nil
}

func (g *GitLabForge) linksURL(rel *Release) string {
	return g.apiURL(fmt.Sprintf("/releases/%s/assets/links", url.PathEscape(rel.ID)))
}

func (g *GitLabForge) ListAssets(ctx context.Context, rel *Release) ([]Asset, error) {
	var links []gitlabLink
	if err := g.doJSON(ctx, http.MethodGet, g.linksURL(rel), nil, &links); err != nil {
		return nil, err
	}
	out := make([]Asset, 0, len(links))
	for _, l := range links {
		out = append(out, l.asset())
	}
	return out, nil
}

func (g *GitLabForge) DeleteAsset(ctx context.Context, rel *Release, asset Asset) error {
	return g.doJSON(ctx, http.MethodDelete, g.linksURL(rel)+"/"+asset.ID, nil, nil)
}

// UploadAsset stores the file in the generic package registry under the
// release tag, then links it to the release.
func (g *GitLabForge) UploadAsset(ctx context.Context, rel *Release, up Upload) (*Asset, error) {
	fileURL := g.apiURL(fmt.Sprintf("/packages/generic/%s/%s/%s",
		GitLabPackageName, url.PathEscape(rel.TagName), url.PathEscape(up.Name)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fileURL, up.Body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = up.Size
	req.Header.Set("Content-Type", "application/octet-stream")
	if err := g.do(req, nil); err != nil {
		return nil, err
	}

	payload := map[string]string{
		"name":      up.Name,
		"url":       fileURL,
		"link_type": "package",
	}
	var link gitlabLink
	if err := g.doJSON(ctx, http.MethodPost, g.linksURL(rel), payload, &link); err != nil {
		return nil, err
	}
	out := link.asset()
	return &out, nil
}
