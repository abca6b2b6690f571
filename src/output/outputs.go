package output

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// WriteStepOutputs appends key/value pairs to a GitHub Actions output file
// ($GITHUB_OUTPUT). Keys are written in sorted order. Multi-line values use
// the heredoc form with a random delimiter. An empty path is a no-op.
func WriteStepOutputs(path string, values map[string]string) error {
	if path == "" || len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := values[k]
		if strings.ContainsAny(v, "\r\n") {
			delim := "EOF_" + uuid.NewString()
			fmt.Fprintf(&b, "%s<<%s\n%s\n%s\n", k, delim, v, delim)
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening step output file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("writing step outputs: %w", err)
	}
	return nil
}
