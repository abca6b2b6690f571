package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joeycumines/go-release-action/src/pipeline"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Build, package, and upload the release asset",
	Long: `Resolve the Go toolchain, build the project for the configured target,
package the binaries, and upload the asset with its checksums.

The asset file name is printed on stdout; progress and the stage report go
to stderr.`,
	Args: cobra.NoArgs,
	RunE: runRelease,
}

func init() {
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	p := pipeline.New(verbose)
	p.Stdout = cmd.OutOrStdout()
	_, err := p.Run(cmd.Context(), cfg)
	return err
}
