package policy

import (
	"strings"

	"github.com/app-sre/proms-mcp/internal/core"
)

// Engine holds the loaded access rules and evaluates them against
// identities. With no rules configured every identity may use every
// datasource; rules only ever widen from zero, never narrow from all.
type Engine struct {
	rules []core.AccessRule
}

// New creates a new Engine with the given rules.
func New(rules []core.AccessRule) *Engine {
	return &Engine{
		rules: rules,
	}
}

// OpenAccess reports whether the engine runs without any rules.
func (e *Engine) OpenAccess() bool {
	return len(e.rules) == 0
}

// Allowed reports whether the identity may use the named datasource.
func (e *Engine) Allowed(identity core.Identity, datasource string) bool {
	if e.OpenAccess() {
		return true
	}
	for _, rule := range e.rules {
		if !checkRule(rule, identity, "").Matched {
			continue
		}
		if matchDatasource(rule.Datasources, datasource) {
			return true
		}
	}
	return false
}

// Filter returns the subset of datasources the identity may use,
// preserving input order. Datasources an identity cannot use simply do
// not appear; callers must not explain the omission.
func (e *Engine) Filter(identity core.Identity, datasources []core.Datasource) []core.Datasource {
	if e.OpenAccess() {
		return datasources
	}

	var matched []core.AccessRule
	for _, rule := range e.rules {
		if checkRule(rule, identity, "").Matched {
			matched = append(matched, rule)
		}
	}

	out := make([]core.Datasource, 0, len(datasources))
	for _, ds := range datasources {
		for _, rule := range matched {
			if matchDatasource(rule.Datasources, ds.Name) {
				out = append(out, ds)
				break
			}
		}
	}
	return out
}

// matchDatasource checks a name against rule patterns: a literal name,
// a bare "*" or a prefix with a trailing "*".
func matchDatasource(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if pattern == "*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if pattern == name {
			return true
		}
	}
	return false
}
