package runner

import (
	"fmt"
	"strings"

	"github.com/forgefleet/conveyor/pkg/models"
)

// constraint is one parsed match expression. Empty fields are
// unconstrained.
type constraint struct {
	name     string
	version  string
	compiler string
	arch     string
}

// parseConstraint parses the constraint syntax used by mapping rules:
//
//	name[@version][%compiler] [arch=arch]
//
// Every component is optional and may contain * wildcards. Examples:
// "readline", "gcc@9.*", "%clang", "arch=linux-*", "* %gcc arch=linux-x86_64".
func parseConstraint(expr string) (constraint, error) {
	var c constraint

	fields := strings.Fields(expr)
	if len(fields) == 0 {
		return c, fmt.Errorf("empty constraint")
	}

	for _, field := range fields {
		switch {
		case strings.HasPrefix(field, "arch="):
			c.arch = strings.TrimPrefix(field, "arch=")
		case strings.HasPrefix(field, "%"):
			c.compiler = strings.TrimPrefix(field, "%")
		default:
			rest := field
			if idx := strings.Index(rest, "%"); idx >= 0 {
				c.compiler = rest[idx+1:]
				rest = rest[:idx]
			}
			if idx := strings.Index(rest, "@"); idx >= 0 {
				c.version = rest[idx+1:]
				rest = rest[:idx]
			}
			c.name = rest
		}
	}

	return c, nil
}

// Matches reports whether the spec satisfies the constraint expression.
func Matches(spec models.Spec, expr string) (bool, error) {
	c, err := parseConstraint(expr)
	if err != nil {
		return false, err
	}

	if c.name != "" && c.name != "*" && !matchWildcard(spec.Name, c.name) {
		return false, nil
	}
	if c.version != "" && !matchWildcard(spec.Version, c.version) {
		return false, nil
	}
	if c.compiler != "" && !matchCompiler(spec.Compiler, c.compiler) {
		return false, nil
	}
	if c.arch != "" && !matchWildcard(spec.Arch, c.arch) {
		return false, nil
	}
	return true, nil
}

// matchCompiler matches a spec compiler like "gcc@9.1" against a
// constraint compiler. A version-less constraint ("gcc") matches any
// version of that compiler. A spec whose compiler was stripped for a
// compiler-agnostic phase only matches wildcard constraints.
func matchCompiler(compiler, pattern string) bool {
	if matchWildcard(compiler, pattern) {
		return true
	}
	if !strings.Contains(pattern, "@") {
		name, _, found := strings.Cut(compiler, "@")
		return found && matchWildcard(name, pattern)
	}
	return false
}

// matchWildcard matches a value against a pattern containing * wildcards.
func matchWildcard(s, pattern string) bool {
	if pattern == "*" || pattern == s {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}

	parts := strings.Split(pattern, "*")
	pos := 0

	for i, part := range parts {
		if part == "" {
			continue
		}

		if i == 0 {
			if !strings.HasPrefix(s, part) {
				return false
			}
			pos = len(part)
			continue
		}

		if i == len(parts)-1 && !strings.HasSuffix(pattern, "*") {
			if !strings.HasSuffix(s, part) || len(s)-len(part) < pos {
				return false
			}
			continue
		}

		idx := strings.Index(s[pos:], part)
		if idx == -1 {
			return false
		}
		pos += idx + len(part)
	}

	return true
}
