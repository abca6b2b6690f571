package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joeycumines/go-release-action/src/config"
	"github.com/joeycumines/go-release-action/src/ctxlog"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "go-release",
	Short: "Cross-compile, package, and publish Go release assets",
	Long: `go-release builds a Go project for one GOOS/GOARCH pair, packages the
binaries into a named archive, and uploads it to a release on GitHub, Gitea,
or GitLab.

Inputs come from INPUT_* environment variables (GitHub Actions style), an
optional .go-release.yml or .go-release.toml file, and flags.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(ctxlog.WithLogger(ctx, ctxlog.New(os.Stderr, verbose)))

		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .go-release.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	config.RegisterFlags(rootCmd.PersistentFlags())
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
