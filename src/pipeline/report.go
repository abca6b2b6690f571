package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joeycumines/go-release-action/src/build"
	"github.com/joeycumines/go-release-action/src/config"
	"github.com/joeycumines/go-release-action/src/output"
	"github.com/joeycumines/go-release-action/src/pack"
	"github.com/joeycumines/go-release-action/src/secrets"
	"github.com/joeycumines/go-release-action/src/toolchain"
	"github.com/joeycumines/go-release-action/src/upload"
)

// report renders one framed section per stage. A nil writer discards it.
type report struct {
	w     io.Writer
	color bool
}

func (r *report) section(id, name string, elapsed time.Duration, body func(*output.Section)) {
	if r.w == nil {
		return
	}
	output.SectionStart(r.w, id, name)
	sec := output.NewSection(r.w, name, elapsed, r.color)
	body(sec)
	sec.Close()
	output.SectionEnd(r.w, id)
}

func (r *report) toolchain(tc *toolchain.Toolchain, elapsed time.Duration) {
	r.section("gr_toolchain", "Toolchain", elapsed, func(sec *output.Section) {
		version := tc.Version
		if version == "" {
			version = "(unknown)"
		}
		sec.KV("version", version)
		sec.KV("source", string(tc.Source))
		sec.KV("download", tc.DownloadURL)
		sec.KV("sha256", tc.SHA256)
	})
}

func (r *report) build(set *build.ArtifactSet, elapsed time.Duration) {
	r.section("gr_build", "Build", elapsed, func(sec *output.Section) {
		sec.KV("mode", string(set.Mode))
		sec.KV("dir", set.Dir)
		for _, step := range set.Steps {
			sec.Status(step.Status, "%-12s %s", step.Name, step.Command)
		}
		sec.Separator()
		for _, bin := range set.Binaries {
			sec.Row("%-32s %s", filepath.Base(bin), fileSize(bin))
		}
	})
}

func (r *report) pack(plan *pack.Plan, assets []*Asset, archiver string, elapsed time.Duration) {
	r.section("gr_package", "Package", elapsed, func(sec *output.Section) {
		sec.KV("format", string(plan.Format))
		if plan.Format != pack.FormatNone {
			sec.KV("archiver", archiver)
		}
		for _, f := range plan.ExtraFiles {
			sec.KV("extra", filepath.Base(f))
		}
		sec.Separator()
		for _, a := range assets {
			sec.Row("%-40s %s", a.Name, fileSize(a.Path))
			for _, c := range a.Checksums {
				sec.Row("  %-6s %s", c.Algorithm, c.Sum)
			}
		}
	})
}

func (r *report) upload(cfg *config.Config, res *Result, elapsed time.Duration) {
	r.section("gr_upload", "Upload", elapsed, func(sec *output.Section) {
		target := cfg.Release.Tag
		if target == "" {
			target = cfg.Release.Name
		}
		sec.Row("%s  →  %s (%s)", target, cfg.Release.Repo, cfg.Release.Forge)
		sec.Row("")
		for _, u := range res.Uploads {
			if u == nil {
				continue
			}
			switch u.State {
			case upload.StateSucceeded:
				sec.Status("success", "%s (%d attempt(s))", u.Name, u.Attempts)
			case upload.StateFailed:
				msg := "unknown error"
				if u.Err != nil {
					msg = u.Err.Error()
				}
				sec.Status("failed", "%s: %s", u.Name, msg)
			default:
				sec.Status("skipped", "%s", u.Name)
			}
		}
	})
}

func (r *report) secretScan(findings []secrets.Finding, files int, elapsed time.Duration) {
	r.section("gr_secrets", "Secrets", elapsed, func(sec *output.Section) {
		status := "success"
		if len(findings) > 0 {
			status = "failed"
		}
		sec.Status(status, "%d finding(s) in %d path(s)", len(findings), files)
		output.SectionFindings(sec, findings, r.color)
	})
}

func fileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return output.FormatBytes(fi.Size())
}
