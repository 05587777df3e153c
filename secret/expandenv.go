package secret

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// ExpandEnvStrict expands $VAR and ${VAR} from the process environment.
// A ${VAR} that is unset is an error; $VAR that is unset expands to "".
// $$ emits a literal $.
func ExpandEnvStrict(s string) (string, error) {
	return expand(s, os.LookupEnv)
}

func expand(s string, lookup LookupFunc) (string, error) {
	const dollarSentinel = "\x00XBRLMCP_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	var missing []string
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := lookup(match[1]); !ok && !slices.Contains(missing, match[1]) {
			missing = append(missing, match[1])
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	s = os.Expand(s, func(key string) string {
		v, _ := lookup(key)
		return v
	})
	return strings.ReplaceAll(s, dollarSentinel, "$"), nil
}
