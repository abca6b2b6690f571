package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/joeycumines/go-release-action/src/pack"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "go-release ") {
		t.Errorf("output = %q", out)
	}
}

func TestPlanCommand(t *testing.T) {
	ws := t.TempDir()
	t.Setenv("GITHUB_WORKSPACE", ws)
	t.Setenv("GITHUB_REPOSITORY", "octo/app")
	t.Setenv("GITHUB_REF", "refs/tags/v1.4.0")
	t.Setenv("INPUT_GOOS", "linux")
	t.Setenv("INPUT_GOARCH", "arm")

	out, err := execute(t, "plan", "--goarm", "7", "--upload=false", "--ldflags", "-s -w")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	var view struct {
		Build struct {
			Mode    string   `yaml:"mode"`
			Command string   `yaml:"command"`
			Env     []string `yaml:"env"`
		} `yaml:"build"`
		Package pack.Plan `yaml:"package"`
	}
	if err := yaml.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decoding plan: %v\n%s", err, out)
	}

	if view.Package.FileName != "app-v1.4.0-linux-armv7.tar.gz" {
		t.Errorf("file name = %q", view.Package.FileName)
	}
	if view.Build.Mode != "single" {
		t.Errorf("mode = %q", view.Build.Mode)
	}
	if !strings.Contains(view.Build.Command, "-ldflags -s -w") {
		t.Errorf("command = %q", view.Build.Command)
	}
	if !strings.Contains(strings.Join(view.Build.Env, " "), "GOARM=7") {
		t.Errorf("env = %v", view.Build.Env)
	}
	if strings.Contains(out, "token") {
		t.Errorf("plan output exposes the token field:\n%s", out)
	}
}
