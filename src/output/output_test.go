package output

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/go-release-action/src/secrets"
)

func TestWriteStepOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "github_output")
	if err := os.WriteFile(path, []byte("existing=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := WriteStepOutputs(path, map[string]string{
		"release_asset_name": "app-v1.0.0-linux-amd64",
		"notes":              "line one\nline two",
	})
	if err != nil {
		t.Fatalf("WriteStepOutputs: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	re := regexp.MustCompile(`^existing=1\nnotes<<(EOF_[0-9a-f-]+)\nline one\nline two\n(EOF_[0-9a-f-]+)\nrelease_asset_name=app-v1.0.0-linux-amd64\n$`)
	m := re.FindStringSubmatch(string(data))
	if m == nil {
		t.Fatalf("unexpected output file:\n%s", data)
	}
	if m[1] != m[2] {
		t.Errorf("heredoc delimiters differ: %s / %s", m[1], m[2])
	}
}

func TestWriteStepOutputsNoPath(t *testing.T) {
	if err := WriteStepOutputs("", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("WriteStepOutputs: %v", err)
	}
}

func TestSection(t *testing.T) {
	var buf bytes.Buffer
	sec := NewSection(&buf, "Build", 1500*time.Millisecond, false)
	sec.KV("mode", "single")
	sec.KV("skipped", "")
	sec.Status("success", "build %s", "go build")
	sec.Close()

	out := buf.String()
	for _, want := range []string{"── Build ", " 1.5s ──", "│ mode            single\n", "│ ✓ build go build\n", "    └"} {
		if !strings.Contains(out, want) {
			t.Errorf("section missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "skipped") {
		t.Errorf("empty KV rendered:\n%s", out)
	}
}

func TestSectionFindings(t *testing.T) {
	var buf bytes.Buffer
	sec := NewSection(&buf, "Secrets", 0, false)
	SectionFindings(sec, []secrets.Finding{
		{File: "/ws/z.env", Line: 3, RuleID: "generic-api-key", Description: "Generic API Key"},
		{File: "/ws/a.env", Line: 9, Column: 4, RuleID: "github-pat", Description: "GitHub Personal Access Token"},
		{File: "/ws/a.env", Line: 2, RuleID: "github-pat", Description: "GitHub Personal Access Token"},
	}, false)
	sec.Close()

	out := buf.String()
	a, z := strings.Index(out, "a.env"), strings.Index(out, "z.env")
	if a < 0 || z < 0 || a > z {
		t.Fatalf("files not sorted:\n%s", out)
	}
	if strings.Index(out, "  2 ") > strings.Index(out, "  9:4 ") {
		t.Errorf("findings not sorted by line:\n%s", out)
	}
	if !strings.Contains(out, "CRIT  GitHub Personal Access Token (github-pat)") {
		t.Errorf("finding row missing:\n%s", out)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestStatusIcon(t *testing.T) {
	if StatusIcon("success", false) != "✓" || StatusIcon("failed", false) != "✗" || StatusIcon("skipped", false) != "⊘" {
		t.Error("plain icons changed")
	}
}
