// Package toolchain turns a Go version specifier into a concrete toolchain
// version and download reference.
//
// Specifiers are evaluated in order:
//
//	""  or "latest"   latest stable release from {endpoint}/VERSION?m=text
//	"1.21"            latest stable 1.21.x from {endpoint}/dl/?mode=json&include=all
//	"1.21.5"          used as-is, no network call
//	"https://…"       direct download URL for the host platform
//	"go.mod"          version read from a module file, then resolved as above
//
// Resolution failures are deterministic input errors; nothing is retried.
package toolchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
	"golang.org/x/mod/modfile"
)

// ErrVersionResolution marks any failure to resolve a version specifier.
var ErrVersionResolution = errors.New("toolchain version resolution failed")

// Source records which rule produced a Toolchain.
type Source string

const (
	SourceLatest   Source = "latest"
	SourceMinor    Source = "minor"
	SourceExact    Source = "exact"
	SourceURL      Source = "url"
	SourceManifest Source = "manifest"
)

// Toolchain is a resolved Go toolchain reference. It is never mutated after Resolve returns.
type Toolchain struct {
	Version     string // "1.21.5"; empty for URLs without a recognizable version
	Source      Source
	DownloadURL string
	Filename    string
	SHA256      string // known only when the release index was consulted
	Manifest    string // module file path for SourceManifest
}

var (
	exactRe   = regexp.MustCompile(`^(?:go)?(\d+\.\d+(?:\.\d+|(?:rc|beta)\d+))$`)
	minorRe   = regexp.MustCompile(`^(?:go)?(\d+)\.(\d+)(?:\.x)?$`)
	urlNameRe = regexp.MustCompile(`go(\d+\.\d+(?:\.\d+|(?:rc|beta)\d+)?)\.`)
	firstLine = regexp.MustCompile(`^go(\S+)`)
)

// Resolver resolves version specifiers against a go.dev compatible endpoint.
type Resolver struct {
	Endpoint string // default "https://go.dev"

	// Host platform of the invocation. Toolchain archives are always for the
	// machine running the build, never the build target.
	HostOS   string
	HostArch string

	Client *http.Client // nil uses a client with a 30s timeout
}

// NewResolver creates a resolver for the running host.
func NewResolver(endpoint string) *Resolver {
	if endpoint == "" {
		endpoint = "https://go.dev"
	}
	return &Resolver{
		Endpoint: strings.TrimRight(endpoint, "/"),
		HostOS:   runtime.GOOS,
		HostArch: runtime.GOARCH,
		Client:   defaultClient(),
	}
}

// Resolve applies the specifier rules and returns the resolved toolchain.
func (r *Resolver) Resolve(ctx context.Context, spec string) (*Toolchain, error) {
	return r.resolve(ctx, strings.TrimSpace(spec), true)
}

func (r *Resolver) resolve(ctx context.Context, spec string, allowManifest bool) (*Toolchain, error) {
	switch {
	case spec == "" || spec == "latest":
		return r.latest(ctx)

	case isURL(spec):
		return r.fromURL(spec)

	case allowManifest && isManifest(spec):
		return r.fromManifest(ctx, spec)

	case exactRe.MatchString(spec):
		v := exactRe.FindStringSubmatch(spec)[1]
		return r.exact(v, SourceExact), nil

	case minorRe.MatchString(spec):
		m := minorRe.FindStringSubmatch(spec)
		return r.latestPatch(ctx, m[1]+"."+m[2])

	default:
		return nil, fmt.Errorf("%w: unrecognized version specifier %q", ErrVersionResolution, spec)
	}
}

// latest queries the current stable release.
func (r *Resolver) latest(ctx context.Context) (*Toolchain, error) {
	data, err := r.get(ctx, "/VERSION?m=text", "text/plain")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVersionResolution, err)
	}
	line := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	m := firstLine.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("%w: unexpected latest version response %q", ErrVersionResolution, line)
	}
	return r.exact(m[1], SourceLatest), nil
}

// release is one entry of the go.dev download index.
type release struct {
	Version string        `json:"version"`
	Stable  bool          `json:"stable"`
	Files   []releaseFile `json:"files"`
}

type releaseFile struct {
	Filename string `json:"filename"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	SHA256   string `json:"sha256"`
	Kind     string `json:"kind"`
}

// latestPatch picks the highest stable release within a minor line.
func (r *Resolver) latestPatch(ctx context.Context, minor string) (*Toolchain, error) {
	data, err := r.get(ctx, "/dl/?mode=json&include=all", "application/json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVersionResolution, err)
	}
	var releases []release
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, fmt.Errorf("%w: decoding release index: %v", ErrVersionResolution, err)
	}

	var (
		best    *masterminds.Version
		bestRel release
	)
	for _, rel := range releases {
		if !rel.Stable {
			continue
		}
		num := strings.TrimPrefix(rel.Version, "go")
		if num != minor && !strings.HasPrefix(num, minor+".") {
			continue
		}
		v, err := masterminds.NewVersion(num)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestRel = rel
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no stable release found for %s", ErrVersionResolution, minor)
	}

	tc := r.exact(strings.TrimPrefix(bestRel.Version, "go"), SourceMinor)
	for _, f := range bestRel.Files {
		if f.Filename == tc.Filename {
			tc.SHA256 = f.SHA256
		}
	}
	return tc, nil
}

// exact builds the download reference for a concrete version.
func (r *Resolver) exact(version string, src Source) *Toolchain {
	ext := "tar.gz"
	if r.HostOS == "windows" {
		ext = "zip"
	}
	name := fmt.Sprintf("go%s.%s-%s.%s", version, r.HostOS, r.HostArch, ext)
	return &Toolchain{
		Version:     version,
		Source:      src,
		DownloadURL: r.Endpoint + "/dl/" + name,
		Filename:    name,
	}
}

// fromURL accepts a direct download for the host platform only.
func (r *Resolver) fromURL(raw string) (*Toolchain, error) {
	name := path.Base(strings.SplitN(raw, "?", 2)[0])
	platform := r.HostOS + "-" + r.HostArch
	if !strings.Contains(name, platform) {
		return nil, fmt.Errorf("%w: %s is not a %s toolchain archive", ErrVersionResolution, raw, platform)
	}

	tc := &Toolchain{
		Source:      SourceURL,
		DownloadURL: raw,
		Filename:    name,
	}
	if m := urlNameRe.FindStringSubmatch(name); m != nil {
		tc.Version = m[1]
	}
	return tc, nil
}

// fromManifest reads the toolchain or go directive from a go.mod file.
// The toolchain directive wins when both are present.
func (r *Resolver) fromManifest(ctx context.Context, spec string) (*Toolchain, error) {
	file := spec
	if fi, err := os.Stat(spec); err == nil && fi.IsDir() {
		file = filepath.Join(spec, "go.mod")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrVersionResolution, file, err)
	}
	mf, err := modfile.Parse(file, data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrVersionResolution, file, err)
	}

	var version string
	switch {
	case mf.Toolchain != nil && mf.Toolchain.Name != "" && mf.Toolchain.Name != "default":
		version = strings.TrimPrefix(mf.Toolchain.Name, "go")
	case mf.Go != nil && mf.Go.Version != "":
		version = mf.Go.Version
	default:
		return nil, fmt.Errorf("%w: %s has no go or toolchain directive", ErrVersionResolution, file)
	}

	tc, err := r.resolve(ctx, version, false)
	if err != nil {
		return nil, err
	}
	tc.Source = SourceManifest
	tc.Manifest = file
	return tc, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// isManifest matches a go.mod path, or a directory holding one.
func isManifest(s string) bool {
	if filepath.Base(s) == "go.mod" {
		return true
	}
	if exactRe.MatchString(s) || minorRe.MatchString(s) {
		return false
	}
	_, err := os.Stat(filepath.Join(s, "go.mod"))
	return err == nil
}
