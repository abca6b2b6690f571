package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command is a single external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the parent environment
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewExecRunner creates an ExecRunner with default output writers.
// Child stdout goes to stderr so the process's own stdout carries only results.
func NewExecRunner(verbose bool) *ExecRunner {
	return &ExecRunner{
		Verbose: verbose,
		Stdout:  os.Stderr,
		Stderr:  os.Stderr,
	}
}

// Run executes cmd and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	if r.Verbose {
		fmt.Fprintf(r.Stderr, "exec: %s\n", c)
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}
