package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joeycumines/go-release-action/src/output"
	"github.com/joeycumines/go-release-action/src/toolchain"
)

var toolchainCmd = &cobra.Command{
	Use:   "toolchain [version]",
	Short: "Resolve the Go toolchain to install",
	Long: `Resolve a Go version specifier to an exact version and download URL.

The specifier is the argument, or the configured goversion: empty or
"latest", a minor version such as 1.22, an exact version, a download URL,
or a path to a go.mod file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runToolchain,
}

func init() {
	rootCmd.AddCommand(toolchainCmd)
}

func runToolchain(cmd *cobra.Command, args []string) error {
	spec := cfg.Toolchain.Version
	if len(args) == 1 {
		spec = args[0]
	}

	tc, err := toolchain.NewResolver(cfg.Toolchain.Endpoint).Resolve(cmd.Context(), spec)
	if err != nil {
		return err
	}

	values := map[string]string{
		"go_version":      tc.Version,
		"go_download_url": tc.DownloadURL,
	}
	if tc.SHA256 != "" {
		values["go_sha256"] = tc.SHA256
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "go_version=%s\n", tc.Version)
	fmt.Fprintf(w, "go_download_url=%s\n", tc.DownloadURL)
	if tc.SHA256 != "" {
		fmt.Fprintf(w, "go_sha256=%s\n", tc.SHA256)
	}
	return output.WriteStepOutputs(cfg.Run.OutputFile, values)
}
