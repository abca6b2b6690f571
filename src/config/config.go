// Package config builds the immutable configuration for one release invocation.
//
// Values are layered, lowest precedence first: built-in defaults, an optional
// config file (.go-release.yml or .go-release.toml), environment variables
// (GitHub Actions style INPUT_<NAME>, plus a few platform fallbacks such as
// GITHUB_REPOSITORY), and finally command-line flags. The result is read once
// at process start; no other package reads the environment for configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// defaultConfigFiles are tried in order when no explicit file is given.
var defaultConfigFiles = []string{".go-release.yml", ".go-release.yaml", ".go-release.toml"}

// Config is the complete input set for one (GOOS, GOARCH) invocation.
type Config struct {
	Target    TargetConfig    `mapstructure:"target" yaml:"target"`
	Toolchain ToolchainConfig `mapstructure:"toolchain" yaml:"toolchain"`
	Build     BuildConfig     `mapstructure:"build" yaml:"build"`
	Package   PackageConfig   `mapstructure:"package" yaml:"package"`
	Release   ReleaseConfig   `mapstructure:"release" yaml:"release"`
	Run       RunConfig       `mapstructure:"run" yaml:"run"`
}

// TargetConfig selects the platform being built.
type TargetConfig struct {
	GOOS   string `mapstructure:"goos" yaml:"goos"`
	GOARCH string `mapstructure:"goarch" yaml:"goarch"`

	// Microarchitecture variants. Each only applies to its own architecture family.
	GOAMD64 string `mapstructure:"goamd64" yaml:"goamd64,omitempty"`
	GOARM   string `mapstructure:"goarm" yaml:"goarm,omitempty"`
	GOMIPS  string `mapstructure:"gomips" yaml:"gomips,omitempty"`
	GO386   string `mapstructure:"go386" yaml:"go386,omitempty"`
}

// ToolchainConfig holds the Go version specifier.
type ToolchainConfig struct {
	// Version is empty/"latest", "1.21", "1.21.5", a download URL, or a go.mod path.
	Version string `mapstructure:"version" yaml:"version,omitempty"`

	// Endpoint is the base URL for version lookups and downloads.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// BuildConfig controls how binaries are produced.
type BuildConfig struct {
	ProjectPath   string `mapstructure:"project_path" yaml:"project_path"`
	BinaryName    string `mapstructure:"binary_name" yaml:"binary_name"`
	MultiBinaries bool   `mapstructure:"multi_binaries" yaml:"multi_binaries"`
	Command       string `mapstructure:"command" yaml:"command"`
	Flags         string `mapstructure:"flags" yaml:"flags,omitempty"`
	LDFlags       string `mapstructure:"ldflags" yaml:"ldflags,omitempty"`

	// ExecutableCompression is a upx command line, e.g. "upx -9".
	ExecutableCompression string `mapstructure:"executable_compression" yaml:"executable_compression,omitempty"`

	PreCommand  string `mapstructure:"pre_command" yaml:"pre_command,omitempty"`
	PostCommand string `mapstructure:"post_command" yaml:"post_command,omitempty"`
}

// PackageConfig controls archive format and naming.
type PackageConfig struct {
	// CompressAssets is auto, zip, tar.gz, or off. TRUE/FALSE are accepted for
	// compatibility with older workflows.
	CompressAssets string `mapstructure:"compress_assets" yaml:"compress_assets"`

	AssetName                string `mapstructure:"asset_name" yaml:"asset_name,omitempty"`
	RequireAssetPlaceholders bool   `mapstructure:"require_asset_placeholders" yaml:"require_asset_placeholders,omitempty"`
	ExtraFiles               string `mapstructure:"extra_files" yaml:"extra_files,omitempty"`

	// Archiver is "native" (in-process) or "command" (external tar/zip).
	Archiver string `mapstructure:"archiver" yaml:"archiver"`

	MD5Sum    bool `mapstructure:"md5sum" yaml:"md5sum"`
	SHA256Sum bool `mapstructure:"sha256sum" yaml:"sha256sum"`

	// ScanSecrets runs the secret scanner over extra files before archiving.
	ScanSecrets bool `mapstructure:"scan_secrets" yaml:"scan_secrets"`
}

// ReleaseConfig controls where and how the asset is published.
type ReleaseConfig struct {
	Tag       string `mapstructure:"tag" yaml:"tag,omitempty"`
	Name      string `mapstructure:"name" yaml:"name,omitempty"`
	Repo      string `mapstructure:"repo" yaml:"repo,omitempty"`
	Overwrite bool   `mapstructure:"overwrite" yaml:"overwrite"`
	Retry     int    `mapstructure:"retry" yaml:"retry"`
	Upload    bool   `mapstructure:"upload" yaml:"upload"`

	// Notes fills the body of a newly created release from the commits
	// since the previous tag.
	Notes bool `mapstructure:"notes" yaml:"notes"`

	// Forge is github, gitea, or gitlab.
	Forge  string `mapstructure:"forge" yaml:"forge"`
	APIURL string `mapstructure:"api_url" yaml:"api_url,omitempty"`
	Token  string `mapstructure:"token" yaml:"-"`
}

// RunConfig holds per-invocation process settings.
type RunConfig struct {
	Workspace     string `mapstructure:"workspace" yaml:"workspace,omitempty"`
	OutputFile    string `mapstructure:"output_file" yaml:"output_file,omitempty"`
	KeepArtifacts bool   `mapstructure:"keep_artifacts" yaml:"keep_artifacts"`
}

// option ties a config key to its default, env names, and flag.
type option struct {
	key   string
	def   any
	env   []string
	flag  string
	usage string
}

var options = []option{
	{"target.goos", "", []string{"INPUT_GOOS"}, "goos", "target operating system"},
	{"target.goarch", "", []string{"INPUT_GOARCH"}, "goarch", "target architecture"},
	{"target.goamd64", "", []string{"INPUT_GOAMD64"}, "goamd64", "amd64 microarchitecture level (v1-v4)"},
	{"target.goarm", "", []string{"INPUT_GOARM"}, "goarm", "arm version (5, 6, 7)"},
	{"target.gomips", "", []string{"INPUT_GOMIPS"}, "gomips", "mips float mode (hardfloat, softfloat)"},
	{"target.go386", "", []string{"INPUT_GO386"}, "go386", "386 float mode (sse2, softfloat)"},
	{"toolchain.version", "", []string{"INPUT_GOVERSION"}, "goversion", "Go version, URL, or go.mod path"},
	{"toolchain.endpoint", "https://go.dev", []string{"INPUT_GOVERSION_ENDPOINT"}, "", ""},
	{"build.project_path", ".", []string{"INPUT_PROJECT_PATH"}, "project-path", "project directory (or package list in multi-binary mode)"},
	{"build.binary_name", "", []string{"INPUT_BINARY_NAME"}, "binary-name", "binary name (default: repository name)"},
	{"build.multi_binaries", false, []string{"INPUT_MULTI_BINARIES"}, "multi-binaries", "build every package in project-path"},
	{"build.command", "go build", []string{"INPUT_BUILD_COMMAND"}, "build-command", "build command"},
	{"build.flags", "", []string{"INPUT_BUILD_FLAGS"}, "build-flags", "additional build flags"},
	{"build.ldflags", "", []string{"INPUT_LDFLAGS"}, "ldflags", "linker flags"},
	{"build.executable_compression", "", []string{"INPUT_EXECUTABLE_COMPRESSION"}, "executable-compression", "compress binaries, e.g. \"upx -9\""},
	{"build.pre_command", "", []string{"INPUT_PRE_COMMAND"}, "pre-command", "shell command run before the build"},
	{"build.post_command", "", []string{"INPUT_POST_COMMAND"}, "post-command", "shell command run after the upload"},
	{"package.compress_assets", "auto", []string{"INPUT_COMPRESS_ASSETS"}, "compress-assets", "auto, zip, tar.gz, or off"},
	{"package.asset_name", "", []string{"INPUT_ASSET_NAME"}, "asset-name", "asset base name override"},
	{"package.require_asset_placeholders", false, []string{"INPUT_REQUIRE_ASSET_PLACEHOLDERS"}, "", ""},
	{"package.extra_files", "", []string{"INPUT_EXTRA_FILES"}, "extra-files", "extra files to bundle (space separated)"},
	{"package.archiver", "native", []string{"INPUT_ARCHIVER"}, "archiver", "native or command"},
	{"package.md5sum", true, []string{"INPUT_MD5SUM"}, "md5sum", "publish a .md5 checksum file"},
	{"package.sha256sum", false, []string{"INPUT_SHA256SUM"}, "sha256sum", "publish a .sha256 checksum file"},
	{"package.scan_secrets", false, []string{"INPUT_SCAN_SECRETS"}, "scan-secrets", "fail when extra files contain credentials"},
	{"release.tag", "", []string{"INPUT_RELEASE_TAG"}, "release-tag", "release tag (default: from GITHUB_REF)"},
	{"release.name", "", []string{"INPUT_RELEASE_NAME"}, "release-name", "release name (creates the release if missing)"},
	{"release.repo", "", []string{"INPUT_RELEASE_REPO", "GITHUB_REPOSITORY"}, "release-repo", "owner/repo that holds the release"},
	{"release.overwrite", false, []string{"INPUT_OVERWRITE"}, "overwrite", "replace an existing asset with the same name"},
	{"release.retry", 3, []string{"INPUT_RETRY"}, "retry", "upload attempts"},
	{"release.upload", true, []string{"INPUT_UPLOAD"}, "upload", "upload the asset"},
	{"release.notes", false, []string{"INPUT_RELEASE_NOTES"}, "release-notes", "generate notes for a created release from git history"},
	{"release.forge", "github", []string{"INPUT_FORGE"}, "forge", "github, gitea, or gitlab"},
	{"release.api_url", "", []string{"INPUT_API_URL", "GITHUB_API_URL"}, "api-url", "forge API base URL"},
	{"release.token", "", []string{"INPUT_GITHUB_TOKEN", "GITHUB_TOKEN"}, "", ""},
	{"run.workspace", "", []string{"GITHUB_WORKSPACE"}, "", ""},
	{"run.output_file", "", []string{"GITHUB_OUTPUT"}, "", ""},
	{"run.keep_artifacts", false, []string{"INPUT_KEEP_ARTIFACTS"}, "keep-artifacts", "keep the build directory after the run"},
}

// RegisterFlags defines the command-line flags Load understands.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, o := range options {
		if o.flag == "" {
			continue
		}
		switch d := o.def.(type) {
		case bool:
			fs.Bool(o.flag, d, o.usage)
		case int:
			fs.Int(o.flag, d, o.usage)
		default:
			fs.String(o.flag, fmt.Sprint(d), o.usage)
		}
	}
}

// Load assembles the configuration from defaults, file, environment, and flags.
// An empty path tries the default file names; a missing default file is not an error.
// fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	for _, o := range options {
		v.SetDefault(o.key, o.def)
		if err := v.BindEnv(append([]string{o.key}, o.env...)...); err != nil {
			return nil, fmt.Errorf("%w: binding %s: %v", ErrConfiguration, o.key, err)
		}
		if fs != nil && o.flag != "" {
			if f := fs.Lookup(o.flag); f != nil {
				if err := v.BindPFlag(o.key, f); err != nil {
					return nil, fmt.Errorf("%w: binding --%s: %v", ErrConfiguration, o.flag, err)
				}
			}
		}
	}

	file, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if file != nil {
		if err := v.MergeConfigMap(file); err != nil {
			return nil, fmt.Errorf("%w: merging config file: %v", ErrConfiguration, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding configuration: %v", ErrConfiguration, err)
	}

	applyPlatformDefaults(cfg, os.Getenv)
	return cfg, nil
}

// readConfigFile decodes a YAML or TOML file into a generic map.
func readConfigFile(path string) (map[string]any, error) {
	explicit := path != ""
	candidates := defaultConfigFiles
	if explicit {
		candidates = []string{path}
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && !explicit {
				continue
			}
			return nil, fmt.Errorf("%w: reading %s: %v", ErrConfiguration, p, err)
		}

		m := map[string]any{}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".toml":
			err = toml.Unmarshal(data, &m)
		default:
			err = yaml.Unmarshal(data, &m)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", ErrConfiguration, p, err)
		}
		return m, nil
	}
	return nil, nil
}

// applyPlatformDefaults fills values derived from the hosting platform's
// event metadata: the binary name from the repository, and the release tag
// from the triggering ref.
func applyPlatformDefaults(cfg *Config, getenv func(string) string) {
	if cfg.Build.BinaryName == "" {
		if repo := getenv("GITHUB_REPOSITORY"); repo != "" {
			cfg.Build.BinaryName = path.Base(repo)
		}
	}

	// A release name without a tag means "find the release by name".
	if cfg.Release.Tag == "" && cfg.Release.Name == "" {
		if ref := getenv("GITHUB_REF"); strings.HasPrefix(ref, "refs/tags/") {
			cfg.Release.Tag = path.Base(ref)
		}
	}

	if cfg.Run.Workspace == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Run.Workspace = wd
		}
	}
}

// Exe returns the executable suffix for the target OS.
func (c *Config) Exe() string {
	if c.Target.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// ProjectDir returns the directory builds run in. In multi-binary go builds
// ProjectPath is a package list and builds run from the workspace.
func (c *Config) ProjectDir() string {
	if c.Build.MultiBinaries && !c.CustomBuild() {
		return c.Run.Workspace
	}
	return c.SourceDir()
}

// CustomBuild reports whether the build command is a make invocation that
// leaves a single binary in the project directory.
func (c *Config) CustomBuild() bool {
	words, err := shlex.Split(c.Build.Command)
	return err == nil && len(words) > 0 && words[0] == "make"
}

// SourceDir resolves ProjectPath against the workspace.
func (c *Config) SourceDir() string {
	if filepath.IsAbs(c.Build.ProjectPath) {
		return c.Build.ProjectPath
	}
	return filepath.Join(c.Run.Workspace, c.Build.ProjectPath)
}
