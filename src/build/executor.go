// Package build cross-compiles the project into an isolated output directory.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joeycumines/go-release-action/src/config"
	"github.com/joeycumines/go-release-action/src/ctxlog"
)

// ErrBuild marks a failed build or executable compression step.
var ErrBuild = errors.New("build failed")

// Executor runs build plans.
type Executor struct {
	Runner Runner
	Now    func() time.Time
}

// NewExecutor creates an Executor backed by os/exec.
func NewExecutor(verbose bool) *Executor {
	return &Executor{Runner: NewExecRunner(verbose), Now: time.Now}
}

// Build creates an isolation directory under the workspace and builds into it.
// On error the directory is removed; on success the caller owns it.
func (e *Executor) Build(ctx context.Context, cfg *config.Config) (set *ArtifactSet, err error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	dir, err := NewIsolationDir(cfg.Run.Workspace, now())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	plan, err := NewPlan(cfg, dir)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan)
}

// Execute runs plan and collects the binaries it produced.
func (e *Executor) Execute(ctx context.Context, plan *Plan) (*ArtifactSet, error) {
	log := ctxlog.FromContext(ctx)
	for _, w := range plan.Warnings {
		log.Warn(w)
	}

	set := &ArtifactSet{Dir: plan.Dir, Mode: plan.Mode}

	log.Info("building", "mode", plan.Mode, "command", plan.Build.String())
	res := e.run(ctx, "build", plan.Build)
	set.Steps = append(set.Steps, res)
	if res.Error != nil {
		return set, res.Error
	}

	if plan.Mode == ModeCustom {
		dst := filepath.Join(plan.Dir, filepath.Base(plan.Produced))
		if err := moveFile(plan.Produced, dst); err != nil {
			return set, fmt.Errorf("%w: collecting %s: %v", ErrBuild, plan.Produced, err)
		}
	}

	bins, err := listBinaries(plan.Dir)
	if err != nil {
		return set, fmt.Errorf("%w: %v", ErrBuild, err)
	}
	if len(bins) == 0 {
		return set, fmt.Errorf("%w: no binaries produced in %s", ErrBuild, plan.Dir)
	}
	set.Binaries = bins

	if len(plan.Compress) > 0 {
		for _, bin := range bins {
			c := Command{
				Name: plan.Compress[0],
				Args: append(append([]string{}, plan.Compress[1:]...), bin),
				Dir:  plan.Dir,
			}
			log.Info("compressing executable", "binary", filepath.Base(bin), "command", c.String())
			res := e.run(ctx, "compress "+filepath.Base(bin), c)
			set.Steps = append(set.Steps, res)
			if res.Error != nil {
				return set, res.Error
			}
		}
	}

	return set, nil
}

func (e *Executor) run(ctx context.Context, name string, c Command) StepResult {
	start := time.Now()
	res := StepResult{Name: name, Command: c.String()}

	if err := e.Runner.Run(ctx, c); err != nil {
		res.Status = "failed"
		res.Error = fmt.Errorf("%w: %s: %v", ErrBuild, name, err)
	} else {
		res.Status = "success"
	}
	res.Duration = time.Since(start)
	return res
}

// listBinaries returns every regular file directly inside dir.
func listBinaries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var bins []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		bins = append(bins, filepath.Join(dir, e.Name()))
	}
	sort.Strings(bins)
	return bins, nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
