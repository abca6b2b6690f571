package forge

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// GiteaForge implements ReleaseStore for Gitea and Forgejo instances.
type GiteaForge struct {
	BaseURL string // e.g., "https://codeberg.org"
	Token   string
	Owner   string
	Repo    string

	api
}

// NewGitea creates a Gitea/Forgejo client. baseURL may be the instance root
// or its /api/v1 endpoint.
func NewGitea(baseURL, token, owner, repo string) *GiteaForge {
	g := &GiteaForge{
		BaseURL: strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/api/v1"),
		Token:   token,
		Owner:   owner,
		Repo:    repo,
	}
	g.api = api{
		forge: Gitea,
		auth:  func(r *http.Request) { r.Header.Set("Authorization", "token "+g.Token) },
	}
	return g
}

func (g *GiteaForge) Provider() Provider { return Gitea }

func (g *GiteaForge) apiURL(path string) string {
	return fmt.Sprintf("%s/api/v1/repos/%s/%s%s", g.BaseURL, g.Owner, g.Repo, path)
}

type giteaRelease struct {
	ID      int64  `json:"id"`
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

func (r giteaRelease) release() *Release {
	return &Release{
		ID:      fmt.Sprintf("%d", r.ID),
		TagName: r.TagName,
		Name:    r.Name,
		URL:     r.HTMLURL,
	}
}

type giteaAsset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

func (a giteaAsset) asset() Asset {
	return Asset{
		ID:          fmt.Sprintf("%d", a.ID),
		Name:        a.Name,
		Size:        a.Size,
		DownloadURL: a.BrowserDownloadURL,
	}
}

func (g *GiteaForge) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	var rel giteaRelease
	if err := g.doJSON(ctx, http.MethodGet, g.apiURL("/releases/tags/"+url.PathEscape(tag)), nil, &rel); err != nil {
		return nil, err
	}
	return rel.release(), nil
}

func (g *GiteaForge) ReleaseByName(ctx context.Context, name string) (*Release, error) {
	const limit = 50
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s?limit=%d&page=%d", g.apiURL("/releases"), limit, page)

		var releases []giteaRelease
		if err := g.doJSON(ctx, http.MethodGet, u, nil, &releases); err != nil {
			return nil, err
		}
		for _, r := range releases {
			if r.Name == name {
				return r.release(), nil
			}
		}
		if len(releases) < limit {
			break
		}
	}
	return nil, &APIError{Forge: Gitea, Method: http.MethodGet, URL: g.apiURL("/releases"), StatusCode: http.StatusNotFound, Body: "no release named " + name}
}

func (g *GiteaForge) CreateRelease(ctx context.Context, opts ReleaseOptions) (*Release, error) {
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

	var rel giteaRelease
	if err := g.doJSON(ctx, http.MethodPost, g.apiURL("/releases"), payload, &rel); err != nil {
		return nil, err
	}
	return rel.release(), nil
}

func (g *GiteaForge) ListAssets(ctx context.Context, rel *Release) ([]Asset, error) {
	var assets []giteaAsset
	if err := g.doJSON(ctx, http.MethodGet, g.apiURL("/releases/"+rel.ID+"/assets"), nil, &assets); err != nil {
		return nil, err
	}
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.asset())
	}
	return out, nil
}

func (g *GiteaForge) DeleteAsset(ctx context.Context, rel *Release, asset Asset) error {
	return g.doJSON(ctx, http.MethodDelete, g.apiURL("/releases/"+rel.ID+"/assets/"+asset.ID), nil, nil)
}

// UploadAsset streams the file as a multipart "attachment" field.
func (g *GiteaForge) UploadAsset(ctx context.Context, rel *Release, up Upload) (*Asset, error) {
	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	go func() {
		part, err := w.CreateFormFile("attachment", up.Name)
		if err == nil {
			_, err = io.Copy(part, up.Body)
		}
		if err == nil {
			err = w.Close()
		}
		pw.CloseWithError(err)
	}()

	uploadURL := g.apiURL(fmt.Sprintf("/releases/%s/assets?name=%s", rel.ID, url.QueryEscape(up.Name)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var a giteaAsset
	if err := g.do(req, &a); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	out := a.asset()
	return &out, nil
}
