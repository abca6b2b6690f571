// Package pipeline runs one release invocation end to end: resolve the
// toolchain, build, package, checksum, upload, and report. Stages run in
// order and the first failure aborts the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joeycumines/go-release-action/src/archive"
	"github.com/joeycumines/go-release-action/src/build"
	"github.com/joeycumines/go-release-action/src/checksum"
	"github.com/joeycumines/go-release-action/src/config"
	"github.com/joeycumines/go-release-action/src/ctxlog"
	"github.com/joeycumines/go-release-action/src/forge"
	"github.com/joeycumines/go-release-action/src/gitver"
	"github.com/joeycumines/go-release-action/src/output"
	"github.com/joeycumines/go-release-action/src/pack"
	"github.com/joeycumines/go-release-action/src/secrets"
	"github.com/joeycumines/go-release-action/src/toolchain"
	"github.com/joeycumines/go-release-action/src/upload"
)

// ErrHook marks a failed pre or post command.
var ErrHook = errors.New("hook command failed")

// MediaChecksum is the media type of checksum sidecar uploads.
const MediaChecksum = "text/plain"

// Pipeline holds the collaborators of a run. Zero-valued fields fall back to
// the real implementations.
type Pipeline struct {
	Runner   build.Runner
	Resolver *toolchain.Resolver
	Store    forge.ReleaseStore

	// NewBackOff overrides the uploader's delay policy.
	NewBackOff func() backoff.BackOff

	// DetectTag supplies the release tag when none is configured.
	DetectTag func(dir string) (string, error)

	// Notes renders the body of a release the uploader creates.
	Notes func(dir string) (string, error)

	// Secrets scans extra files when scan_secrets is set.
	Secrets func(ctx context.Context, paths []string) ([]secrets.Finding, error)

	Stdout   io.Writer // asset names, one per line
	Report   io.Writer // section report
	Progress io.Writer // upload progress bars; nil disables them
	Color    bool
	Now      func() time.Time
}

// New creates a Pipeline writing results to stdout and the report to stderr.
func New(verbose bool) *Pipeline {
	p := &Pipeline{
		Runner:    build.NewExecRunner(verbose),
		DetectTag: gitver.TagAtHead,
		Notes:     gitver.ReleaseNotes,
		Secrets:   scanSecrets,
		Stdout:    os.Stdout,
		Report:    os.Stderr,
		Color:     output.UseColor(),
		Now:       time.Now,
	}
	if output.IsTerminal() {
		p.Progress = os.Stderr
	}
	return p
}

// Asset is one published file.
type Asset struct {
	Name      string
	Path      string
	MediaType string
	URL       string
	Checksums []checksum.Sidecar
	Upload    *upload.Result
}

// Result summarizes a run.
type Result struct {
	Toolchain *toolchain.Toolchain
	Artifacts *build.ArtifactSet
	Plan      *pack.Plan
	Assets    []*Asset
	Uploads   []*upload.Result // assets and sidecars, in upload order
	Outputs   map[string]string
	Kept      bool
}

// Run executes the release stages for cfg. cfg is not modified.
func (p *Pipeline) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	c := *cfg
	cfg = &c
	if p.Runner == nil {
		p.Runner = build.NewExecRunner(false)
	}

	log := ctxlog.FromContext(ctx).With("goos", cfg.Target.GOOS, "goarch", cfg.Target.GOARCH)
	ctx = ctxlog.WithLogger(ctx, log)

	p.fillTag(ctx, cfg)

	warnings, err := config.Validate(cfg)
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Outputs: map[string]string{}, Kept: cfg.Run.KeepArtifacts}
	rep := &report{w: p.Report, color: p.Color}

	// ── Toolchain ──
	start := time.Now()
	resolver := p.Resolver
	if resolver == nil {
		resolver = toolchain.NewResolver(cfg.Toolchain.Endpoint)
	}
	tc, err := resolver.Resolve(ctx, manifestPath(cfg.Toolchain.Version, cfg.Run.Workspace))
	if err != nil {
		return res, err
	}
	res.Toolchain = tc
	res.Outputs["go_version"] = tc.Version
	res.Outputs["go_download_url"] = tc.DownloadURL
	log.Info("resolved toolchain", "version", tc.Version, "source", tc.Source, "url", tc.DownloadURL)
	rep.toolchain(tc, time.Since(start))

	// ── Pre-command ──
	if cfg.Build.PreCommand != "" {
		if err := p.hook(ctx, "pre_command", cfg.Build.PreCommand, cfg.ProjectDir(), nil); err != nil {
			return res, err
		}
	}

	// ── Build ──
	start = time.Now()
	executor := &build.Executor{Runner: p.Runner, Now: p.Now}
	set, err := executor.Build(ctx, cfg)
	if err != nil {
		return res, err
	}
	res.Artifacts = set
	defer func() {
		if cfg.Run.KeepArtifacts {
			log.Info("keeping build artifacts", "dir", set.Dir)
			return
		}
		if rerr := os.RemoveAll(set.Dir); rerr != nil {
			log.Warn("removing build artifacts", "dir", set.Dir, "error", rerr)
		}
	}()
	rep.build(set, time.Since(start))

	// ── Package ──
	start = time.Now()
	plan, err := pack.NewPlan(cfg, set.Binaries)
	if err != nil {
		return res, err
	}
	res.Plan = plan

	if cfg.Package.ScanSecrets && len(plan.ExtraFiles) > 0 {
		if err := p.scan(ctx, plan.ExtraFiles, rep); err != nil {
			return res, err
		}
	}

	arc, err := archive.New(cfg.Package.Archiver, p.Runner)
	if err != nil {
		return res, err
	}
	paths, err := archive.Package(ctx, arc, plan, set, set.Dir)
	if err != nil {
		return res, err
	}

	var algs []checksum.Algorithm
	if cfg.Package.MD5Sum {
		algs = append(algs, checksum.MD5)
	}
	if cfg.Package.SHA256Sum {
		algs = append(algs, checksum.SHA256)
	}
	for _, path := range paths {
		a := &Asset{Name: filepath.Base(path), Path: path, MediaType: plan.MediaType}
		if len(algs) > 0 {
			sides, err := checksum.Write(ctx, path, algs...)
			if err != nil {
				return res, fmt.Errorf("%w: checksum: %v", archive.ErrPackaging, err)
			}
			a.Checksums = sides
		}
		res.Assets = append(res.Assets, a)
	}
	log.Info("packaged", "format", plan.Format, "assets", strings.Join(plan.Assets(), ","))
	rep.pack(plan, res.Assets, arc.Name(), time.Since(start))

	// ── Upload ──
	if cfg.Release.Upload {
		start = time.Now()
		err := p.upload(ctx, cfg, res)
		rep.upload(cfg, res, time.Since(start))
		if err != nil {
			return res, err
		}
	} else {
		log.Info("upload disabled, skipping")
	}

	primary := res.Assets[0]
	vars := map[string]string{
		"RELEASE_ASSET_NAME": plan.BaseName,
		"RELEASE_ASSET_FILE": primary.Name,
		"RELEASE_ASSET_PATH": primary.Path,
		"RELEASE_ASSET_DIR":  set.Dir,
	}

	// ── Post-command ──
	if cfg.Build.PostCommand != "" {
		if err := p.hook(ctx, "post_command", expandVars(cfg.Build.PostCommand, vars), cfg.Run.Workspace, envVars(vars)); err != nil {
			return res, err
		}
	}

	// ── Outputs ──
	res.Outputs["release_asset_name"] = plan.BaseName
	res.Outputs["release_asset_file"] = primary.Name
	if primary.URL != "" {
		res.Outputs["release_asset_url"] = primary.URL
	}
	if cfg.Run.KeepArtifacts {
		res.Outputs["release_asset_dir"] = set.Dir
		res.Outputs["release_asset_path"] = primary.Path
	}
	if p.Stdout != nil {
		for _, a := range res.Assets {
			fmt.Fprintln(p.Stdout, a.Name)
		}
	}
	if err := output.WriteStepOutputs(cfg.Run.OutputFile, res.Outputs); err != nil {
		return res, err
	}

	return res, nil
}

// fillTag falls back to the tag at HEAD when neither tag nor name is set.
func (p *Pipeline) fillTag(ctx context.Context, cfg *config.Config) {
	if cfg.Release.Tag != "" || cfg.Release.Name != "" || p.DetectTag == nil {
		return
	}
	tag, err := p.DetectTag(cfg.Run.Workspace)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("no release tag from git", "error", err)
		return
	}
	ctxlog.FromContext(ctx).Info("using tag at HEAD", "tag", tag)
	cfg.Release.Tag = tag
}

func (p *Pipeline) upload(ctx context.Context, cfg *config.Config, res *Result) error {
	store := p.Store
	if store == nil {
		s, err := forge.New(forge.Options{
			Provider: forge.Provider(cfg.Release.Forge),
			APIURL:   cfg.Release.APIURL,
			Token:    cfg.Release.Token,
			Repo:     cfg.Release.Repo,
		})
		if err != nil {
			return fmt.Errorf("%w: %w: %v", upload.ErrUpload, upload.ErrPermanent, err)
		}
		store = s
	}

	u := upload.New(store, cfg.Release.Tag, cfg.Release.Name, cfg.Release.Overwrite, cfg.Release.Retry)
	if cfg.Release.Notes && p.Notes != nil {
		notes, err := p.Notes(cfg.Run.Workspace)
		if err != nil {
			ctxlog.FromContext(ctx).Warn("generating release notes", "error", err)
		}
		u.Description = notes
	}
	if p.NewBackOff != nil {
		u.NewBackOff = p.NewBackOff
	}
	u.Progress = p.Progress
	u.OnTransition = func(name string, from, to upload.State) {
		ctxlog.FromContext(ctx).Debug("upload state", "asset", name, "from", from, "to", to)
	}

	for _, a := range res.Assets {
		r, err := u.Upload(ctx, upload.Request{Path: a.Path, Name: a.Name, MediaType: a.MediaType})
		res.Uploads = append(res.Uploads, r)
		a.Upload = r
		if err != nil {
			return err
		}
		a.URL = r.Asset.DownloadURL
	}
	for _, a := range res.Assets {
		for _, s := range a.Checksums {
			r, err := u.Upload(ctx, upload.Request{Path: s.Path, Name: filepath.Base(s.Path), MediaType: MediaChecksum})
			res.Uploads = append(res.Uploads, r)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) scan(ctx context.Context, paths []string, rep *report) error {
	if p.Secrets == nil {
		return nil
	}
	start := time.Now()
	findings, err := p.Secrets(ctx, paths)
	if err != nil {
		return fmt.Errorf("%w: scanning extra files: %v", archive.ErrPackaging, err)
	}
	rep.secretScan(findings, len(paths), time.Since(start))
	if len(findings) > 0 {
		return fmt.Errorf("%w: %d finding(s) in %s", secrets.ErrSecretFound, len(findings), filepath.Base(findings[0].File))
	}
	return nil
}

func scanSecrets(ctx context.Context, paths []string) ([]secrets.Finding, error) {
	s, err := secrets.NewScanner()
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx, paths)
}

func (p *Pipeline) hook(ctx context.Context, name, script, dir string, env []string) error {
	ctxlog.FromContext(ctx).Info("running "+name, "command", script)
	err := p.Runner.Run(ctx, build.Command{Name: "sh", Args: []string{"-c", script}, Dir: dir, Env: env})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHook, name, err)
	}
	return nil
}

// manifestPath anchors a relative go.mod specifier at the workspace.
func manifestPath(spec, workspace string) string {
	if filepath.Base(spec) != "go.mod" || filepath.IsAbs(spec) {
		return spec
	}
	return filepath.Join(workspace, spec)
}

// expandVars substitutes {KEY} placeholders.
func expandVars(s string, vars map[string]string) string {
	var pairs []string
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func envVars(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}
