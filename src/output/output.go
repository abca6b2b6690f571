package output

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/joeycumines/go-release-action/src/secrets"
)

// Colors for terminal output.
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorBold  = "\033[1m"
)

// SectionFindings renders secret findings grouped by file inside a section.
// Files are sorted lexicographically; findings within each file by line, column, rule.
func SectionFindings(sec *Section, findings []secrets.Finding, color bool) {
	if len(findings) == 0 {
		return
	}

	byFile := map[string][]secrets.Finding{}
	for _, f := range findings {
		byFile[f.File] = append(byFile[f.File], f)
	}

	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	sec.Row("")

	for _, file := range files {
		ff := byFile[file]
		sort.Slice(ff, func(i, j int) bool {
			a, b := ff[i], ff[j]
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			if a.Column != b.Column {
				return a.Column < b.Column
			}
			return a.RuleID < b.RuleID
		})

		name := filepath.Base(file)
		if color {
			sec.Row("%s", colorBold+name+colorReset)
		} else {
			sec.Row("%s", name)
		}

		tag := "CRIT"
		if color {
			tag = colorRed + tag + colorReset
		}
		for _, f := range ff {
			loc := fmt.Sprintf("%d", f.Line)
			if f.Column > 0 {
				loc = fmt.Sprintf("%d:%d", f.Line, f.Column)
			}
			sec.Row("  %-8s %-4s  %s (%s)", loc, tag, f.Description, f.RuleID)
		}

		sec.Row("")
	}
}
