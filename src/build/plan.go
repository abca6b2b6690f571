package build

import (
	"fmt"
	"path/filepath"

	"github.com/google/shlex"

	"github.com/joeycumines/go-release-action/src/config"
)

// Mode describes how the build command produces binaries.
type Mode string

const (
	ModeSingle Mode = "single" // go build -o dir/name
	ModeMulti  Mode = "multi"  // go build -o dir/ ./cmd/...
	ModeCustom Mode = "custom" // make; binary picked up from the project dir
)

// Plan is the resolved command sequence for one build.
type Plan struct {
	Mode  Mode
	Dir   string // isolation directory
	Build Command

	// Produced is the binary the custom command leaves in the project dir.
	Produced string

	// Compress is the executable compression command without its file argument.
	Compress []string

	Warnings []string
}

// NewPlan resolves the commands for cfg, writing into dir.
func NewPlan(cfg *config.Config, dir string) (*Plan, error) {
	words, err := shlex.Split(cfg.Build.Command)
	if err != nil || len(words) == 0 {
		return nil, fmt.Errorf("%w: build command %q", config.ErrConfiguration, cfg.Build.Command)
	}
	flags, err := shlex.Split(cfg.Build.Flags)
	if err != nil {
		return nil, fmt.Errorf("%w: build flags %q: %v", config.ErrConfiguration, cfg.Build.Flags, err)
	}

	env, warnings := TargetEnv(cfg.Target)
	p := &Plan{
		Dir:      dir,
		Warnings: warnings,
	}
	exe := cfg.Exe()

	switch {
	case words[0] == "make":
		if cfg.Build.BinaryName == "" {
			return nil, fmt.Errorf("%w: make builds need a binary name", config.ErrConfiguration)
		}
		p.Mode = ModeCustom
		src := cfg.SourceDir()
		p.Build = Command{Name: words[0], Args: words[1:], Dir: src, Env: env}
		p.Produced = filepath.Join(src, cfg.Build.BinaryName+exe)

	case cfg.Build.MultiBinaries:
		targets, err := shlex.Split(cfg.Build.ProjectPath)
		if err != nil || len(targets) == 0 {
			return nil, fmt.Errorf("%w: project path %q", config.ErrConfiguration, cfg.Build.ProjectPath)
		}
		p.Mode = ModeMulti
		args := append(append([]string{}, words[1:]...), "-o", dir+string(filepath.Separator))
		args = append(args, flags...)
		args = appendLDFlags(args, cfg.Build.LDFlags)
		args = append(args, targets...)
		p.Build = Command{Name: words[0], Args: args, Dir: cfg.ProjectDir(), Env: env}

	default:
		p.Mode = ModeSingle
		args := append(append([]string{}, words[1:]...), "-o", filepath.Join(dir, cfg.Build.BinaryName+exe))
		args = append(args, flags...)
		args = appendLDFlags(args, cfg.Build.LDFlags)
		p.Build = Command{Name: words[0], Args: args, Dir: cfg.ProjectDir(), Env: env}
	}

	if c := cfg.Build.ExecutableCompression; c != "" {
		cw, err := shlex.Split(c)
		if err != nil || len(cw) == 0 || cw[0] != "upx" {
			return nil, fmt.Errorf("%w: executable compression %q must start with upx", config.ErrConfiguration, c)
		}
		p.Compress = cw
	}

	return p, nil
}

func appendLDFlags(args []string, ldflags string) []string {
	if ldflags == "" {
		return args
	}
	return append(args, "-ldflags", ldflags)
}
