package build

import (
	"fmt"
	"strings"

	"github.com/joeycumines/go-release-action/src/config"
)

// TargetEnv returns the environment for cross-compiling to t. Variants set
// for an architecture they do not apply to are dropped and reported as warnings.
func TargetEnv(t config.TargetConfig) (env []string, warnings []string) {
	env = []string{"GOOS=" + t.GOOS, "GOARCH=" + t.GOARCH}

	variant := func(name, value string, applies bool) {
		if value == "" {
			return
		}
		if !applies {
			warnings = append(warnings, fmt.Sprintf("%s=%s ignored for GOARCH=%s", name, value, t.GOARCH))
			return
		}
		env = append(env, name+"="+value)
	}

	variant("GOAMD64", t.GOAMD64, t.GOARCH == "amd64")
	variant("GOARM", t.GOARM, t.GOARCH == "arm")
	variant("GO386", t.GO386, t.GOARCH == "386")

	switch {
	case strings.HasPrefix(t.GOARCH, "mips64"):
		variant("GOMIPS64", t.GOMIPS, true)
	default:
		variant("GOMIPS", t.GOMIPS, strings.HasPrefix(t.GOARCH, "mips"))
	}

	return env, warnings
}
