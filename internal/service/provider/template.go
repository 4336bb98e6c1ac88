package provider

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// bindTemplate substitutes every {name} placeholder in tpl from vars. A
// placeholder with no binding is a caller error, not a vendor error: the
// request must never leave the process with a hole in it.
func bindTemplate(tpl string, vars map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		name := m[1 : len(m)-1]
		val, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return val
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("unbound placeholders: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// templateWants reports whether tpl references the named placeholder.
func templateWants(tpl, name string) bool {
	return strings.Contains(tpl, "{"+name+"}")
}
