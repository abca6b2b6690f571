package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GITHUB_REPOSITORY", "octo/widget")
	t.Setenv("GITHUB_WORKSPACE", "/work")
	t.Setenv("GITHUB_REF", "refs/heads/main")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Release.Forge != "github" || cfg.Release.Tag != "" {
		t.Errorf("Forge = %q, Tag = %q, want github and no tag", cfg.Release.Forge, cfg.Release.Tag)
	}
	if cfg.Build.Command != "go build" || cfg.Build.ProjectPath != "." {
		t.Errorf("build = %+v", cfg.Build)
	}
	if cfg.Build.BinaryName != "widget" {
		t.Errorf("BinaryName = %q, want widget", cfg.Build.BinaryName)
	}
	if cfg.Release.Repo != "octo/widget" || cfg.Release.Retry != 3 || !cfg.Release.Upload {
		t.Errorf("release = %+v", cfg.Release)
	}
	if cfg.Package.CompressAssets != "auto" || !cfg.Package.MD5Sum || cfg.Package.SHA256Sum {
		t.Errorf("package = %+v", cfg.Package)
	}
	if cfg.Toolchain.Endpoint != "https://go.dev" || cfg.Run.Workspace != "/work" {
		t.Errorf("toolchain = %+v, run = %+v", cfg.Toolchain, cfg.Run)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, "release.yml", `
target:
  goos: linux
  goarch: arm64
build:
  binary_name: tool
  ldflags: -s -w
release:
  retry: 5
  overwrite: true
`)
	t.Setenv("INPUT_GOARCH", "amd64")
	t.Setenv("INPUT_RETRY", "4")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--retry", "7"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target.GOOS != "linux" {
		t.Errorf("GOOS = %q, want file value", cfg.Target.GOOS)
	}
	if cfg.Target.GOARCH != "amd64" {
		t.Errorf("GOARCH = %q, want env over file", cfg.Target.GOARCH)
	}
	if cfg.Release.Retry != 7 {
		t.Errorf("Retry = %d, want flag over env", cfg.Release.Retry)
	}
	if cfg.Build.BinaryName != "tool" || cfg.Build.LDFlags != "-s -w" || !cfg.Release.Overwrite {
		t.Errorf("file values lost: %+v %+v", cfg.Build, cfg.Release)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, ".go-release.toml", `
[package]
compress_assets = "zip"
extra_files = "LICENSE README.md"
sha256sum = true
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Package.CompressAssets != "zip" || cfg.Package.ExtraFiles != "LICENSE README.md" || !cfg.Package.SHA256Sum {
		t.Errorf("package = %+v", cfg.Package)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml"), nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("missing explicit file: err = %v", err)
	}
	bad := writeFile(t, "bad.yml", "target: [unclosed\n")
	if _, err := Load(bad, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("malformed file: err = %v", err)
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		release  ReleaseConfig
		wantTag  string
		wantName string
	}{
		{
			name:    "tag from ref",
			env:     map[string]string{"GITHUB_REF": "refs/tags/v1.2.3"},
			wantTag: "v1.2.3",
		},
		{
			name: "branch ref ignored",
			env:  map[string]string{"GITHUB_REF": "refs/heads/main"},
		},
		{
			name:     "name without tag looks up by name",
			env:      map[string]string{"GITHUB_REF": "refs/tags/v1.2.3"},
			release:  ReleaseConfig{Name: "nightly"},
			wantName: "nightly",
		},
		{
			name:    "explicit tag wins",
			env:     map[string]string{"GITHUB_REF": "refs/tags/v1.2.3"},
			release: ReleaseConfig{Tag: "v9"},
			wantTag: "v9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Release: tt.release, Run: RunConfig{Workspace: "/ws"}}
			applyPlatformDefaults(cfg, func(k string) string { return tt.env[k] })
			if cfg.Release.Tag != tt.wantTag || cfg.Release.Name != tt.wantName {
				t.Errorf("tag = %q, name = %q", cfg.Release.Tag, cfg.Release.Name)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Target:  TargetConfig{GOOS: "linux", GOARCH: "amd64"},
		Build:   BuildConfig{ProjectPath: ".", BinaryName: "app", Command: "go build"},
		Package: PackageConfig{CompressAssets: "auto", Archiver: "native"},
		Release: ReleaseConfig{Tag: "v1.0.0", Repo: "o/r", Retry: 3, Upload: true, Forge: "github", Token: "t"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantErr  string
		wantWarn string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing goos", mutate: func(c *Config) { c.Target.GOOS = "" }, wantErr: "target.goos"},
		{name: "missing goarch", mutate: func(c *Config) { c.Target.GOARCH = "" }, wantErr: "target.goarch"},
		{name: "goarm on amd64", mutate: func(c *Config) { c.Target.GOARM = "7" }, wantWarn: "target.goarm"},
		{name: "goamd64 on arm", mutate: func(c *Config) { c.Target.GOARCH = "arm"; c.Target.GOAMD64 = "v3" }, wantWarn: "target.goamd64"},
		{name: "bad compression", mutate: func(c *Config) { c.Package.CompressAssets = "rar" }, wantErr: "compress_assets"},
		{name: "non-upx compression", mutate: func(c *Config) { c.Build.ExecutableCompression = "gzip -9" }, wantErr: "executable_compression"},
		{name: "zero retry", mutate: func(c *Config) { c.Release.Retry = 0 }, wantErr: "release.retry"},
		{name: "unknown forge", mutate: func(c *Config) { c.Release.Forge = "bitbucket" }, wantErr: "release.forge"},
		{name: "missing token", mutate: func(c *Config) { c.Release.Token = "" }, wantErr: "release.token"},
		{name: "no token needed without upload", mutate: func(c *Config) { c.Release.Token = ""; c.Release.Upload = false }},
		{name: "unknown archiver", mutate: func(c *Config) { c.Package.Archiver = "7z" }, wantErr: "package.archiver"},
		{name: "unbalanced quotes", mutate: func(c *Config) { c.Build.Flags = `-tags "netgo` }, wantErr: "build.flags"},
		{name: "missing binary name", mutate: func(c *Config) { c.Build.BinaryName = "" }, wantErr: "build.binary_name"},
		{
			name: "multi archive needs binary name",
			mutate: func(c *Config) {
				c.Build.BinaryName = ""
				c.Build.MultiBinaries = true
			},
			wantErr: "build.binary_name",
		},
		{
			name: "multi raw without binary name",
			mutate: func(c *Config) {
				c.Build.BinaryName = ""
				c.Build.MultiBinaries = true
				c.Package.CompressAssets = "off"
			},
		},
		{
			name: "make needs binary name",
			mutate: func(c *Config) {
				c.Build.BinaryName = ""
				c.Build.MultiBinaries = true
				c.Build.Command = "make release"
				c.Package.CompressAssets = "off"
			},
			wantErr: "build.binary_name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			warnings, err := Validate(cfg)

			if tt.wantErr == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != "" {
				if !errors.Is(err, ErrConfiguration) || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
			}
			if tt.wantWarn != "" && !strings.Contains(strings.Join(warnings, "\n"), tt.wantWarn) {
				t.Errorf("warnings = %v, want %q", warnings, tt.wantWarn)
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	tests := map[string]Compression{
		"":       CompressAuto,
		"AUTO":   CompressAuto,
		"TRUE":   CompressAuto,
		"zip":    CompressZip,
		"tgz":    CompressTarGz,
		"tar.gz": CompressTarGz,
		"FALSE":  CompressOff,
		"none":   CompressOff,
	}
	for in, want := range tests {
		got, ok := ParseCompression(in)
		if !ok || got != want {
			t.Errorf("ParseCompression(%q) = %q, %v, want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseCompression("rar"); ok {
		t.Error("rar accepted")
	}
}

func TestProjectDir(t *testing.T) {
	cfg := &Config{Build: BuildConfig{ProjectPath: "cmd/app"}, Run: RunConfig{Workspace: "/ws"}}
	if got := cfg.ProjectDir(); got != filepath.Join("/ws", "cmd/app") {
		t.Errorf("ProjectDir = %q", got)
	}
	cfg.Build.MultiBinaries = true
	if got := cfg.ProjectDir(); got != "/ws" {
		t.Errorf("multi ProjectDir = %q", got)
	}
	if got := cfg.SourceDir(); got != filepath.Join("/ws", "cmd/app") {
		t.Errorf("multi SourceDir = %q", got)
	}
	cfg.Build.Command = "make release"
	if !cfg.CustomBuild() {
		t.Error("make not detected as a custom build")
	}
	if got := cfg.ProjectDir(); got != filepath.Join("/ws", "cmd/app") {
		t.Errorf("make ProjectDir = %q", got)
	}
	cfg.Target.GOOS = "windows"
	if cfg.Exe() != ".exe" {
		t.Errorf("Exe = %q", cfg.Exe())
	}
}
