package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IsolationPrefix starts the name of every build output directory.
const IsolationPrefix = "build-artifacts-"

// NewIsolationDir creates a fresh, uniquely named directory under parent.
// The name combines a unix timestamp with a random token so concurrent
// invocations sharing a workspace never collide. The directory is created
// exclusively; an existing directory is an error, never reused.
func NewIsolationDir(parent string, now time.Time) (string, error) {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	dir := filepath.Join(parent, fmt.Sprintf("%s%d-%s", IsolationPrefix, now.Unix(), token))

	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating build directory: %v", ErrBuild, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir, nil
	}
	return abs, nil
}
