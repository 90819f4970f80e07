package validation

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/app-sre/proms-mcp/internal/core"
)

// ValidateAccessRules checks every access rule for structural problems and
// compiles expression matchers. The returned slice carries the compiled
// programs; callers should use it instead of the input.
func ValidateAccessRules(rules []core.AccessRule) ([]core.AccessRule, error) {
	seenNames := make(map[string]struct{})
	var validRules []core.AccessRule

	for i, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("rule #%d missing name", i)
		}
		if _, exists := seenNames[rule.Name]; exists {
			return nil, fmt.Errorf("rule name '%s' is not unique", rule.Name)
		}
		seenNames[rule.Name] = struct{}{}

		if rule.Match.Condition != nil && rule.Match.Expr != "" {
			return nil, fmt.Errorf("rule '%s' has both match.condition and match.expr set", rule.Name)
		}
		empty := len(rule.Match.Groups) == 0 && rule.Match.Condition == nil && rule.Match.Expr == ""
		if empty && !rule.Match.MatchAll {
			return nil, fmt.Errorf("rule '%s' has no groups, condition or expr, and match_all is false", rule.Name)
		}
		if rule.Match.Expr != "" {
			// compile and validate expression
			out, err := expr.Compile(rule.Match.Expr, expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("compiling expr for rule '%s': %w", rule.Name, err)
			}
			rule.Match.CompiledExpr = out
		}
		if rule.Match.Condition != nil {
			if err := rule.Match.Condition.Validate(); err != nil {
				return nil, fmt.Errorf("validating condition for rule '%s': %w", rule.Name, err)
			}
		}

		if len(rule.Datasources) == 0 {
			return nil, fmt.Errorf("rule '%s' unlocks no datasources", rule.Name)
		}
		for _, pattern := range rule.Datasources {
			if err := validateDatasourcePattern(pattern); err != nil {
				return nil, fmt.Errorf("rule '%s': %w", rule.Name, err)
			}
		}

		validRules = append(validRules, rule)
	}

	return validRules, nil
}

// validateDatasourcePattern accepts literal names, a bare "*" and
// prefix patterns with a single trailing "*".
func validateDatasourcePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty datasource pattern")
	}
	if n := strings.Count(pattern, "*"); n > 1 {
		return fmt.Errorf("datasource pattern '%s' has more than one wildcard", pattern)
	} else if n == 1 && !strings.HasSuffix(pattern, "*") {
		return fmt.Errorf("datasource pattern '%s' may only use a trailing wildcard", pattern)
	}
	return nil
}
