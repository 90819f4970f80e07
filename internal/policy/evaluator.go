package policy

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/app-sre/proms-mcp/internal/core"
)

// Trace evaluates every rule against the identity and records why each
// one matched or failed. When requestedDatasource is non-empty, each
// rule result also notes whether its patterns cover that datasource.
func (e *Engine) Trace(identity core.Identity, requestedDatasource string) []core.RuleResult {
	results := make([]core.RuleResult, 0, len(e.rules))
	for _, rule := range e.rules {
		r := checkRule(rule, identity, requestedDatasource)
		results = append(results, core.RuleResult{
			RuleName:         rule.Name,
			Description:      rule.Description,
			Matched:          r.Matched,
			ConditionResults: r.Conditions,
		})
	}
	return results
}

// AllowedNames returns the subset of names the identity may use.
func (e *Engine) AllowedNames(identity core.Identity, names []string) []string {
	if e.OpenAccess() {
		return names
	}
	var matched []core.AccessRule
	for _, rule := range e.rules {
		if checkRule(rule, identity, "").Matched {
			matched = append(matched, rule)
		}
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		for _, rule := range matched {
			if matchDatasource(rule.Datasources, name) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// ruleResult is a simplified result of rule evaluation
type ruleResult struct {
	Matched    bool
	Conditions []core.ConditionResult
}

// checkRule evaluates a single rule against the identity and, when set,
// the requested datasource name.
func checkRule(rule core.AccessRule, identity core.Identity, requestedDatasource string) ruleResult {
	result := ruleResult{
		Matched:    true, // fail on any mismatch
		Conditions: []core.ConditionResult{},
	}

	addResult := func(expression string, passed bool, reason string) {
		result.Conditions = append(result.Conditions, core.ConditionResult{
			Expression: expression,
			Matched:    passed,
			Reason:     reason,
		})
		if !passed {
			result.Matched = false
		}
	}

	attributes := identity.Attributes()

	if len(rule.Match.Groups) > 0 {
		groupsExpr := fmt.Sprintf("groups any-of %v", rule.Match.Groups)
		if !anyGroup(identity.Groups, rule.Match.Groups) {
			addResult(
				groupsExpr,
				false,
				fmt.Sprintf("identity groups %v share no entry with %v", identity.Groups, rule.Match.Groups),
			)
		} else {
			addResult(groupsExpr, true, "")
		}
	}

	if rule.Match.Condition != nil {
		cr := evaluateCondition(*rule.Match.Condition, attributes)
		if !cr.Matched {
			result.Matched = false
		}
		flattenConditionResult(&result.Conditions, cr, 0)
	}

	if rule.Match.CompiledExpr != nil {
		ok, err := expr.Run(rule.Match.CompiledExpr, attributes)
		if err != nil {
			addResult(rule.Match.Expr, false, fmt.Sprintf("error evaluating expression: %v", err))
		} else {
			b, bOk := ok.(bool)
			if !bOk || !b {
				addResult(rule.Match.Expr, false, "expression evaluated to false")
			} else {
				addResult(rule.Match.Expr, true, "")
			}
		}
	}

	if requestedDatasource != "" {
		dsExpr := fmt.Sprintf("datasource in %v", rule.Datasources)
		if !matchDatasource(rule.Datasources, requestedDatasource) {
			addResult(
				dsExpr,
				false,
				fmt.Sprintf("datasource '%s' not covered by %v", requestedDatasource, rule.Datasources),
			)
		} else {
			addResult(dsExpr, true, "")
		}
	}

	return result
}

func anyGroup(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func flattenConditionResult(out *[]core.ConditionResult, cr core.ConditionResult, depth int) {
	indent := strings.Repeat("  ", depth)

	if cr.Expression != "" {
		*out = append(*out, core.ConditionResult{
			Expression: indent + cr.Expression,
			Matched:    cr.Matched,
			Reason:     cr.Reason,
		})
		return
	}

	if cr.Label != "" {
		*out = append(*out, core.ConditionResult{
			Expression: indent + "[" + cr.Label + "]",
			Matched:    cr.Matched,
		})
	}

	for _, child := range cr.Children {
		flattenConditionResult(out, child, depth+1)
	}
}

func evaluateCondition(cond core.Condition, attributes map[string]any) core.ConditionResult {
	// logic operators
	if len(cond.All) > 0 {
		res := core.ConditionResult{
			Matched: true,
			Label:   "AND",
		}
		for _, child := range cond.All {
			cr := evaluateCondition(child, attributes)
			res.Children = append(res.Children, cr)
			if !cr.Matched {
				res.Matched = false
			}
		}
		return res
	}

	if len(cond.Any) > 0 {
		res := core.ConditionResult{
			Matched: false,
			Label:   "OR",
		}
		for _, child := range cond.Any {
			cr := evaluateCondition(child, attributes)
			res.Children = append(res.Children, cr)
			if cr.Matched {
				res.Matched = true
			}
		}
		return res
	}

	if cond.Not != nil {
		cr := evaluateCondition(*cond.Not, attributes)
		return core.ConditionResult{
			Matched:  !cr.Matched,
			Label:    "NOT",
			Children: []core.ConditionResult{cr},
		}
	}

	// leaf condition
	if cond.Key != "" {
		val, exists := attributes[cond.Key]

		createCondition := func(passed bool, reason string) core.ConditionResult {
			return core.ConditionResult{
				Matched:    passed,
				Expression: fmt.Sprintf("%s %s %v", cond.Key, cond.Operator, cond.Value),
				Reason:     reason,
			}
		}

		if cond.Operator == core.OpExists {
			if !exists {
				return createCondition(false, fmt.Sprintf("attribute '%s' does not exist", cond.Key))
			}
			return createCondition(true, "")
		}

		if !exists {
			return createCondition(false, fmt.Sprintf("attribute '%s' missing", cond.Key))
		}

		switch cond.Operator {
		case core.OpEqual:
			if !deepEqual(val, cond.Value) {
				return createCondition(false, fmt.Sprintf("expected '%v' to equal '%v'", val, cond.Value))
			}
			return createCondition(true, "")

		case core.OpContains:
			// check if {val} contains {cond.Value}
			// e.g. groups contains "system:sre"
			if !contains(val, cond.Value) {
				return createCondition(false, fmt.Sprintf("value '%v' not in '%v'", val, cond.Value))
			}
			return createCondition(true, fmt.Sprintf("value '%v' contains '%v'", val, cond.Value))

		case core.OpIn:
			// check if {cond.Value} contains {val}
			// e.g. username IN ['alice', 'bob']
			if !contains(cond.Value, val) {
				return createCondition(false, fmt.Sprintf("value '%v' not in list '%v'", val, cond.Value))
			}
			return createCondition(true, fmt.Sprintf("value '%v' found in list '%v'", val, cond.Value))
		}

		return createCondition(false, fmt.Sprintf("unknown operator '%s' in condition", cond.Operator))
	}

	return core.ConditionResult{
		Matched: true,
		Label:   "(empty)",
	}
}

func deepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func contains(container, item any) bool {
	// handle string contains substring
	if str, ok := container.(string); ok {
		if subStr, ok := item.(string); ok {
			return strings.Contains(str, subStr)
		}
	}

	// handle slice/array contains
	v := reflect.ValueOf(container)
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		for i := 0; i < v.Len(); i++ {
			if deepEqual(v.Index(i).Interface(), item) {
				return true
			}
		}
	}

	return false
}
