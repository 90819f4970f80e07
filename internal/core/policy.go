package core

import "github.com/expr-lang/expr/vm"

// AccessRule binds a Match condition to the set of datasources it unlocks.
// When no rules are configured at all, every identity may use every
// datasource.
type AccessRule struct {
	// Name is a human-readable identifier for logs/debugging.
	Name string `yaml:"name" json:"name"`

	// Description explains the intent of the rule.
	Description string `yaml:"description" json:"description"`

	// Match defines criteria for the Identity.
	Match AccessMatch `yaml:"match" json:"match"`

	// Datasources lists the datasource names this rule unlocks. A trailing
	// "*" acts as a prefix wildcard; a bare "*" matches everything.
	Datasources []string `yaml:"datasources" json:"datasources"`
}

// AccessMatch defines the conditions required for an AccessRule to apply.
// All set criteria must hold.
type AccessMatch struct {
	// Groups is shorthand for the common case: match when the identity
	// belongs to ANY of the listed groups.
	Groups []string `yaml:"groups" json:"groups"`

	// Condition is a condition (which can contain multiple sub-conditions)
	// over the identity attributes (username, subject_id, groups, method).
	// Leaving this empty means no condition-based restriction.
	Condition *Condition `yaml:"condition" json:"condition"`

	// Expr is an optional expression for more complex matching logic,
	// evaluated with the same identity attributes in scope.
	Expr string `yaml:"expr" json:"expr"`

	// MatchAll must be set explicitly for a rule that is meant to apply to
	// every identity. Without it, a rule with no groups, condition or expr
	// is rejected at validation time.
	MatchAll bool `yaml:"match_all" json:"match_all,omitempty"`

	// CompiledExpr holds the pre-compiled form of Expr for efficient evaluation.
	CompiledExpr *vm.Program `yaml:"-" json:"-"`
}

// Attributes flattens an Identity into the attribute map conditions and
// expressions evaluate against.
func (i Identity) Attributes() map[string]any {
	return map[string]any{
		"username":   i.Username,
		"subject_id": i.SubjectID,
		"groups":     i.Groups,
		"method":     string(i.Method),
	}
}
