package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGitHubReleaseAssetFlow(t *testing.T) {
	var uploaded, deleted string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/releases/tags/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id": 42, "tag_name": "v1.0.0", "name": "First", "html_url": "https://gh/rel/42"}`)
	})
	mux.HandleFunc("GET /repos/o/r/releases/tags/v9", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("GET /repos/o/r/releases/42/assets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 7, "name": "app.tar.gz", "size": 3, "browser_download_url": "https://dl/app.tar.gz"}]`)
	})
	mux.HandleFunc("DELETE /repos/o/r/releases/assets/7", func(w http.ResponseWriter, r *http.Request) {
		deleted = "7"
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /repos/o/r/releases/42/assets", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		uploaded = string(body)
		if r.Header.Get("Content-Type") != "application/gzip" {
			http.Error(w, "bad content type", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"id": 8, "name": %q, "size": %d, "browser_download_url": "https://dl/%s"}`,
			r.URL.Query().Get("name"), len(body), r.URL.Query().Get("name"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGitHub(srv.URL, "tok", "o", "r")
	ctx := context.Background()

	rel, err := g.ReleaseByTag(ctx, "v1.0.0")
	if err != nil {
		t.Fatalf("ReleaseByTag: %v", err)
	}
	if rel.ID != "42" || rel.Name != "First" {
		t.Errorf("release = %+v", rel)
	}

	if _, err := g.ReleaseByTag(ctx, "v9"); !IsNotFound(err) {
		t.Errorf("missing tag: err = %v, want not found", err)
	}

	assets, err := g.ListAssets(ctx, rel)
	if err != nil || len(assets) != 1 || assets[0].Name != "app.tar.gz" {
		t.Fatalf("ListAssets = %+v, %v", assets, err)
	}
	if err := g.DeleteAsset(ctx, rel, assets[0]); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	if deleted != "7" {
		t.Errorf("asset not deleted")
	}

	a, err := g.UploadAsset(ctx, rel, Upload{
		Name:      "app v1.tar.gz",
		MediaType: "application/gzip",
		Size:      3,
		Body:      strings.NewReader("abc"),
	})
	if err != nil {
		t.Fatalf("UploadAsset: %v", err)
	}
	if uploaded != "abc" {
		t.Errorf("uploaded body = %q", uploaded)
	}
	if a.Name != "app v1.tar.gz" || a.DownloadURL != "https://dl/app v1.tar.gz" {
		t.Errorf("asset = %+v", a)
	}
}

func TestGitHubUploadBase(t *testing.T) {
	tests := []struct {
		api, want string
	}{
		{"", "https://uploads.github.com"},
		{"https://api.github.com", "https://uploads.github.com"},
		{"https://ghes.example.com/api/v3", "https://ghes.example.com/api/uploads"},
	}
	for _, tt := range tests {
		if got := NewGitHub(tt.api, "", "o", "r").uploadBaseURL(); got != tt.want {
			t.Errorf("uploadBaseURL(%q) = %q, want %q", tt.api, got, tt.want)
		}
	}
}

func TestGitHubReleaseByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "tag_name": "v1", "name": "one"}, {"id": 2, "tag_name": "v2", "name": "two"}]`)
	}))
	defer srv.Close()

	g := NewGitHub(srv.URL, "tok", "o", "r")
	rel, err := g.ReleaseByName(context.Background(), "two")
	if err != nil || rel.ID != "2" {
		t.Fatalf("ReleaseByName = %+v, %v", rel, err)
	}
	if _, err := g.ReleaseByName(context.Background(), "three"); !IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestGiteaUploadMultipart(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/repos/o/r/releases/5/assets" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "token tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		f, hdr, err := r.FormFile("attachment")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		got = hdr.Filename + ":" + string(data)
		json.NewEncoder(w).Encode(map[string]any{
			"id": 9, "name": hdr.Filename, "size": len(data),
			"browser_download_url": "https://gitea/dl/" + hdr.Filename,
		})
	}))
	defer srv.Close()

	g := NewGitea(srv.URL+"/api/v1", "tok", "o", "r")
	a, err := g.UploadAsset(context.Background(), &Release{ID: "5"}, Upload{Name: "app.zip", Body: strings.NewReader("zipdata")})
	if err != nil {
		t.Fatalf("UploadAsset: %v", err)
	}
	if got != "app.zip:zipdata" {
		t.Errorf("server received %q", got)
	}
	if a.ID != "9" || a.DownloadURL != "https://gitea/dl/app.zip" {
		t.Errorf("asset = %+v", a)
	}
}

func TestGitLabUploadPackageAndLink(t *testing.T) {
	var putBody, linkName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("PRIVATE-TOKEN") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/packages/generic/"+GitLabPackageName+"/v1.0.0/app.tar.gz"):
			data, _ := io.ReadAll(r.Body)
			putBody = string(data)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"message":"201 Created"}`)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/releases/v1.0.0/assets/links"):
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			linkName = payload["name"]
			fmt.Fprintf(w, `{"id": 3, "name": %q, "url": %q, "direct_asset_url": "https://gl/direct"}`, payload["name"], payload["url"])
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewGitLab(srv.URL, "tok", "group/proj")
	rel := &Release{ID: "v1.0.0", TagName: "v1.0.0"}
	a, err := g.UploadAsset(context.Background(), rel, Upload{Name: "app.tar.gz", Size: 4, Body: strings.NewReader("data")})
	if err != nil {
		t.Fatalf("UploadAsset: %v", err)
	}
	if putBody != "data" || linkName != "app.tar.gz" {
		t.Errorf("put %q, link %q", putBody, linkName)
	}
	if a.ID != "3" || a.DownloadURL != "https://gl/direct" {
		t.Errorf("asset = %+v", a)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err       error
		notFound  bool
		conflict  bool
		transient bool
	}{
		{&APIError{StatusCode: 404}, true, false, false},
		{&APIError{StatusCode: 409}, false, true, false},
		{&APIError{StatusCode: 422}, false, true, false},
		{&APIError{StatusCode: 403}, false, false, false},
		{&APIError{StatusCode: 429}, false, false, true},
		{&APIError{StatusCode: 502}, false, false, true},
		{fmt.Errorf("wrapped: %w", &APIError{StatusCode: 503}), false, false, true},
		{errors.New("connection reset by peer"), false, false, true},
		{context.Canceled, false, false, false},
	}
	for _, tt := range tests {
		if got := IsNotFound(tt.err); got != tt.notFound {
			t.Errorf("IsNotFound(%v) = %v", tt.err, got)
		}
		if got := IsConflict(tt.err); got != tt.conflict {
			t.Errorf("IsConflict(%v) = %v", tt.err, got)
		}
		if got := IsTransient(tt.err); got != tt.transient {
			t.Errorf("IsTransient(%v) = %v", tt.err, got)
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		opts    Options
		want    Provider
		wantErr bool
	}{
		{Options{Provider: GitHub, Repo: "o/r"}, GitHub, false},
		{Options{Repo: "o/r"}, GitHub, false},
		{Options{Provider: Gitea, APIURL: "https://codeberg.org", Repo: "o/r"}, Gitea, false},
		{Options{APIURL: "https://gitlab.example.com", Repo: "g/sub/p"}, GitLab, false},
		{Options{Provider: Gitea, Repo: "o/r"}, "", true},
		{Options{Provider: GitHub, Repo: "no-slash"}, "", true},
		{Options{APIURL: "https://forge.internal", Repo: "o/r"}, "", true},
	}
	for _, tt := range tests {
		s, err := New(tt.opts)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%+v) succeeded, want error", tt.opts)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%+v): %v", tt.opts, err)
			continue
		}
		if s.Provider() != tt.want {
			t.Errorf("New(%+v).Provider() = %q, want %q", tt.opts, s.Provider(), tt.want)
		}
	}
}
