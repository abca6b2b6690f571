package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeycumines/go-release-action/src/build"
	"github.com/joeycumines/go-release-action/src/pack"
)

// Command archives with the external tar and zip tools. Entries are staged
// into a scratch directory under their archive names first, so the tools
// see a flat root.
type Command struct {
	Runner build.Runner
}

func (*Command) Name() string { return "command" }

// Archive runs "tar -czf" or "zip -r" over the staged entries.
func (c *Command) Archive(ctx context.Context, format pack.Format, out string, entries []Entry) error {
	stage, err := os.MkdirTemp(filepath.Dir(out), ".stage-")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	defer os.RemoveAll(stage)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := copyTree(e.Path, filepath.Join(stage, e.Name)); err != nil {
			return fmt.Errorf("%w: staging %s: %v", ErrPackaging, e.Name, err)
		}
		names = append(names, e.Name)
	}

	abs, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPackaging, err)
	}

	var cmd build.Command
	switch format {
	case pack.FormatTarGz:
		cmd = build.Command{Name: "tar", Args: append([]string{"-czf", abs}, names...), Dir: stage}
	case pack.FormatZip:
		cmd = build.Command{Name: "zip", Args: append([]string{"-q", "-r", abs}, names...), Dir: stage}
	default:
		return fmt.Errorf("%w: command archiver cannot write %q", ErrPackaging, format)
	}

	if err := c.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("%w: %s did not produce %s", ErrPackaging, cmd.Name, filepath.Base(abs))
	}
	return nil
}
