// Package pack decides how built binaries become release assets: the
// archive format, the asset name, its media type, and the extra files that
// travel with it. Planning is pure; nothing here touches the network and the
// only filesystem access is globbing extra files.
package pack

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/joeycumines/go-release-action/src/config"
)

// Format is the asset container format.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
	FormatNone  Format = "none" // raw binary, no archive
)

// Media types sent with uploads.
const (
	MediaZip    = "application/zip"
	MediaGzip   = "application/gzip"
	MediaBinary = "application/octet-stream"
)

// Plan describes the asset(s) for one invocation.
type Plan struct {
	Format    Format `yaml:"format"`
	BaseName  string `yaml:"base_name"`
	FileName  string `yaml:"file_name"`
	Ext       string `yaml:"ext"`
	MediaType string `yaml:"media_type"`

	// ExtraFiles are absolute paths placed at the archive root.
	ExtraFiles []string `yaml:"extra_files,omitempty"`

	// Raw lists one asset per binary when Format is none.
	Raw []RawAsset `yaml:"raw,omitempty"`
}

// RawAsset is a binary uploaded as-is.
type RawAsset struct {
	Binary   string `yaml:"binary"`
	FileName string `yaml:"file_name"`
}

// Assets returns the file names this plan uploads, in order.
func (p *Plan) Assets() []string {
	if p.Format != FormatNone {
		return []string{p.FileName}
	}
	names := make([]string, 0, len(p.Raw))
	for _, r := range p.Raw {
		names = append(names, r.FileName)
	}
	return names
}

// NewPlan computes the package plan. binaries are the built executables;
// only their base names matter. The same inputs always yield the same plan.
func NewPlan(cfg *config.Config, binaries []string) (*Plan, error) {
	mode, ok := config.ParseCompression(cfg.Package.CompressAssets)
	if !ok {
		return nil, fmt.Errorf("%w: compress_assets %q", config.ErrConfiguration, cfg.Package.CompressAssets)
	}

	p := &Plan{Format: resolveFormat(mode, cfg.Target.GOOS)}
	switch p.Format {
	case FormatZip:
		p.Ext, p.MediaType = ".zip", MediaZip
	case FormatTarGz:
		p.Ext, p.MediaType = ".tar.gz", MediaGzip
	default:
		p.Ext, p.MediaType = cfg.Exe(), MediaBinary
	}

	base, err := baseName(cfg, cfg.Build.BinaryName)
	if err != nil {
		return nil, err
	}
	p.BaseName = base
	p.FileName = base + p.Ext

	if p.Format == FormatNone {
		raw, err := rawAssets(cfg, binaries, p.Ext)
		if err != nil {
			return nil, err
		}
		p.Raw = raw
		if len(raw) == 1 {
			p.FileName = raw[0].FileName
			p.BaseName = strings.TrimSuffix(p.FileName, p.Ext)
		}
	}

	extra, err := ExtraFiles(cfg.Package.ExtraFiles, cfg.Run.Workspace)
	if err != nil {
		return nil, err
	}
	p.ExtraFiles = extra

	return p, nil
}

func resolveFormat(mode config.Compression, goos string) Format {
	switch mode {
	case config.CompressZip:
		return FormatZip
	case config.CompressTarGz:
		return FormatTarGz
	case config.CompressOff:
		return FormatNone
	}
	if goos == "windows" {
		return FormatZip
	}
	return FormatTarGz
}

// baseName applies the asset_name override, or synthesizes
// {binary}-{tag}-{goos}-{goarch}{variant}.
func baseName(cfg *config.Config, binary string) (string, error) {
	if o := cfg.Package.AssetName; o != "" {
		if cfg.Package.RequireAssetPlaceholders &&
			(!strings.Contains(o, "{goos}") || !strings.Contains(o, "{goarch}")) {
			return "", fmt.Errorf("%w: asset_name %q must contain {goos} and {goarch}", config.ErrConfiguration, o)
		}
		return expand(o, cfg, binary), nil
	}

	var parts []string
	for _, s := range []string{binary, cfg.Release.Tag, cfg.Target.GOOS, cfg.Target.GOARCH + Variant(cfg.Target)} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "-"), nil
}

// Variant returns the microarchitecture suffix for asset names:
// "v3" for GOAMD64=v3, "v7" for GOARM=7, "softfloat" for GOMIPS=softfloat.
func Variant(t config.TargetConfig) string {
	switch {
	case t.GOARCH == "amd64" && t.GOAMD64 != "":
		return t.GOAMD64
	case t.GOARCH == "arm" && t.GOARM != "":
		return "v" + strings.TrimPrefix(t.GOARM, "v")
	case strings.HasPrefix(t.GOARCH, "mips") && t.GOMIPS != "":
		return t.GOMIPS
	}
	return ""
}

func expand(s string, cfg *config.Config, binary string) string {
	return strings.NewReplacer(
		"{goos}", cfg.Target.GOOS,
		"{goarch}", cfg.Target.GOARCH+Variant(cfg.Target),
		"{tag}", cfg.Release.Tag,
		"{binary}", binary,
	).Replace(s)
}

// rawAssets names each binary for upload without an archive. A single
// binary honors the asset_name override; several binaries each get the
// synthesized name built from their own file name.
func rawAssets(cfg *config.Config, binaries []string, ext string) ([]RawAsset, error) {
	sorted := append([]string{}, binaries...)
	sort.Strings(sorted)

	var raw []RawAsset
	for _, bin := range sorted {
		name := strings.TrimSuffix(filepath.Base(bin), ext)

		var base string
		if len(sorted) == 1 {
			b, err := baseName(cfg, name)
			if err != nil {
				return nil, err
			}
			base = b
		} else {
			c := *cfg
			c.Package.AssetName = ""
			base, _ = baseName(&c, name)
		}
		raw = append(raw, RawAsset{Binary: bin, FileName: base + ext})
	}
	return raw, nil
}

// ExtraFiles splits a space separated list and expands globs relative to dir.
// A pattern that matches nothing is an error. Results are absolute and de-duplicated.
func ExtraFiles(list, dir string) ([]string, error) {
	patterns, err := shlex.Split(list)
	if err != nil {
		return nil, fmt.Errorf("%w: extra_files: %v", config.ErrConfiguration, err)
	}

	seen := map[string]bool{}
	var files []string
	for _, pat := range patterns {
		full := pat
		if !filepath.IsAbs(full) {
			full = filepath.Join(dir, pat)
		}
		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, fmt.Errorf("%w: extra_files pattern %q: %v", config.ErrConfiguration, pat, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: extra_files: %q matched nothing", config.ErrConfiguration, pat)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}
