package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeycumines/go-release-action/src/build"
	"github.com/joeycumines/go-release-action/src/config"
	"github.com/joeycumines/go-release-action/src/pack"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the effective configuration and release plan",
	Long: `Print the merged configuration, the build command, and the asset names a
release would produce, as YAML. Nothing is built or uploaded.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

// buildView is the YAML rendering of a build.Plan.
type buildView struct {
	Mode     build.Mode `yaml:"mode"`
	Dir      string     `yaml:"dir"`
	Command  string     `yaml:"command"`
	Env      []string   `yaml:"env,omitempty"`
	Compress string     `yaml:"compress,omitempty"`
}

type planView struct {
	Warnings []string       `yaml:"warnings,omitempty"`
	Config   *config.Config `yaml:"config"`
	Build    buildView      `yaml:"build"`
	Package  *pack.Plan     `yaml:"package"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	warnings, err := config.Validate(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Join(cfg.Run.Workspace, build.IsolationPrefix+"<unix>-<id>")
	bp, err := build.NewPlan(cfg, dir)
	if err != nil {
		return err
	}
	pp, err := pack.NewPlan(cfg, expectedBinaries(cfg, bp))
	if err != nil {
		return err
	}

	view := planView{
		Warnings: append(warnings, bp.Warnings...),
		Config:   cfg,
		Build: buildView{
			Mode:     bp.Mode,
			Dir:      bp.Dir,
			Command:  bp.Build.String(),
			Env:      bp.Build.Env,
			Compress: strings.Join(bp.Compress, " "),
		},
		Package: pp,
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	return enc.Close()
}

// expectedBinaries predicts the build output. Package patterns such as
// ./cmd/... cannot be predicted and are left out.
func expectedBinaries(cfg *config.Config, bp *build.Plan) []string {
	exe := cfg.Exe()
	if bp.Mode != build.ModeMulti {
		return []string{filepath.Join(bp.Dir, cfg.Build.BinaryName+exe)}
	}

	targets, _ := shlex.Split(cfg.Build.ProjectPath)
	var bins []string
	for _, t := range targets {
		if strings.Contains(t, "...") {
			continue
		}
		name := filepath.Base(filepath.Clean(t))
		if name == "." || name == string(os.PathSeparator) {
			continue
		}
		bins = append(bins, filepath.Join(bp.Dir, name+exe))
	}
	return bins
}
