package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// ErrConfiguration marks invalid or inconsistent configuration.
var ErrConfiguration = errors.New("invalid configuration")

var (
	validForges    = map[string]bool{"github": true, "gitea": true, "gitlab": true}
	validArchivers = map[string]bool{"native": true, "command": true}
)

// Validate checks structural invariants of a loaded Config.
// Returns warnings (soft issues) and a hard error wrapping ErrConfiguration.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs []string

	// ── Target ────────────────────────────────────────────────────────────

	if cfg.Target.GOOS == "" {
		errs = append(errs, "target.goos: required")
	}
	if cfg.Target.GOARCH == "" {
		errs = append(errs, "target.goarch: required")
	}
	if cfg.Target.GOAMD64 != "" && cfg.Target.GOARCH != "amd64" {
		warnings = append(warnings, fmt.Sprintf("target.goamd64: ignored for goarch %s", cfg.Target.GOARCH))
	}
	if cfg.Target.GOARM != "" && cfg.Target.GOARCH != "arm" {
		warnings = append(warnings, fmt.Sprintf("target.goarm: ignored for goarch %s", cfg.Target.GOARCH))
	}
	if cfg.Target.GOMIPS != "" && !strings.HasPrefix(cfg.Target.GOARCH, "mips") {
		warnings = append(warnings, fmt.Sprintf("target.gomips: ignored for goarch %s", cfg.Target.GOARCH))
	}
	if cfg.Target.GO386 != "" && cfg.Target.GOARCH != "386" {
		warnings = append(warnings, fmt.Sprintf("target.go386: ignored for goarch %s", cfg.Target.GOARCH))
	}

	// ── Build ─────────────────────────────────────────────────────────────

	if strings.TrimSpace(cfg.Build.Command) == "" {
		errs = append(errs, "build.command: required")
	} else if _, err := shlex.Split(cfg.Build.Command); err != nil {
		errs = append(errs, fmt.Sprintf("build.command: %v", err))
	}
	if _, err := shlex.Split(cfg.Build.Flags); err != nil {
		errs = append(errs, fmt.Sprintf("build.flags: %v", err))
	}
	if c := cfg.Build.ExecutableCompression; c != "" {
		words, err := shlex.Split(c)
		if err != nil || len(words) == 0 || words[0] != "upx" {
			errs = append(errs, fmt.Sprintf("build.executable_compression: unsupported command %q (must start with upx)", c))
		}
	}
	if cfg.Build.BinaryName == "" {
		comp, _ := ParseCompression(cfg.Package.CompressAssets)
		switch {
		case cfg.CustomBuild():
			errs = append(errs, "build.binary_name: required for a make build (no GITHUB_REPOSITORY to derive it from)")
		case !cfg.Build.MultiBinaries:
			errs = append(errs, "build.binary_name: required (no GITHUB_REPOSITORY to derive it from)")
		case comp != CompressOff:
			errs = append(errs, "build.binary_name: required to name the archive (no GITHUB_REPOSITORY to derive it from)")
		}
	}

	// ── Package ───────────────────────────────────────────────────────────

	if _, ok := ParseCompression(cfg.Package.CompressAssets); !ok {
		errs = append(errs, fmt.Sprintf("package.compress_assets: invalid value %q (auto, zip, tar.gz, off)", cfg.Package.CompressAssets))
	}
	if !validArchivers[cfg.Package.Archiver] {
		errs = append(errs, fmt.Sprintf("package.archiver: unknown archiver %q (native, command)", cfg.Package.Archiver))
	}
	if _, err := shlex.Split(cfg.Package.ExtraFiles); err != nil {
		errs = append(errs, fmt.Sprintf("package.extra_files: %v", err))
	}

	// ── Release ───────────────────────────────────────────────────────────

	if cfg.Release.Retry < 1 {
		errs = append(errs, fmt.Sprintf("release.retry: must be at least 1, got %d", cfg.Release.Retry))
	}
	if !validForges[cfg.Release.Forge] {
		errs = append(errs, fmt.Sprintf("release.forge: unknown forge %q (github, gitea, gitlab)", cfg.Release.Forge))
	}
	if cfg.Release.Upload {
		if cfg.Release.Token == "" {
			errs = append(errs, "release.token: required when uploading (INPUT_GITHUB_TOKEN or GITHUB_TOKEN)")
		}
		if cfg.Release.Repo == "" {
			errs = append(errs, "release.repo: required when uploading")
		}
		if cfg.Release.Tag == "" && cfg.Release.Name == "" {
			errs = append(errs, "release.tag: required when uploading (or set release.name)")
		}
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(errs, "; "))
	}
	return warnings, nil
}

// Compression is the parsed compress_assets mode.
type Compression string

const (
	CompressAuto  Compression = "auto"
	CompressZip   Compression = "zip"
	CompressTarGz Compression = "tar.gz"
	CompressOff   Compression = "off"
)

// ParseCompression normalizes a compress_assets value. TRUE and FALSE are
// accepted as aliases for auto and off.
func ParseCompression(s string) (Compression, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "true":
		return CompressAuto, true
	case "zip":
		return CompressZip, true
	case "tar.gz", "tgz", "targz":
		return CompressTarGz, true
	case "off", "false", "none":
		return CompressOff, true
	default:
		return "", false
	}
}
