package core

import "fmt"

type ConditionResult struct {
	Matched bool

	// For leaves
	Expression string `json:"expression"` // e.g. "groups contains system:sre"
	Reason     string `json:"reason,omitempty"`

	// For branching
	Label    string // e.g. "AND"
	Children []ConditionResult
}

// Operator defines how to compare values.
type Operator string

const (
	OpEqual Operator = "equals"
	// OpContains means the attribute value contains the given substring or item.
	// for strings: "system:sre" contains "sre"
	// for lists: ["dev", "sre"] contains "sre"
	OpContains Operator = "contains"
	// OpIn means the attribute value is in the given list.
	// e.g., value "alice" in ["alice", "bob"]
	OpIn     Operator = "in"
	OpExists Operator = "exists"
)

func (op Operator) IsValid() bool {
	switch op {
	case OpEqual, OpContains, OpIn, OpExists:
		return true
	default:
		return false
	}
}

// Condition represents a single check against an Identity attribute
// (username, subject_id, groups, method).
type Condition struct {
	// Logic operators
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`
	Not *Condition  `json:"not,omitempty"`

	// Leaf condition
	Key      string   `json:"key,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`
}

func (c *Condition) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		// it needs to be able to unmarshal into a map,
		// otherwise the user entered something very weird
		return err
	}

	// isExplicit marks whether the condition is explicitly defined:
	//   { key: username, operator: equals, value: "alice" }
	// or implicitly:
	//   { username: "alice" }
	isExplicit := false
	for k := range raw {
		if k == "all" || k == "any" || k == "not" || k == "key" || k == "operator" || k == "value" {
			isExplicit = true
			break
		}
	}

	if isExplicit {
		// we can just unmarshal directly into our condition struct
		type plain Condition // hack to prevent recursion :)
		var p plain
		if err := unmarshal(&p); err != nil {
			return err
		}
		*c = Condition(p) // back to condition

		// implicit EQ operator if operator missing
		if c.Key != "" && c.Operator == "" {
			c.Operator = OpEqual
		}

		return nil
	}

	// support implicit conditions / shorthands like { username: "alice" }
	// which means { key: "username", operator: "equals", value: "alice" }
	var children []Condition

	for k, v := range raw {
		sub := Condition{Key: k}

		// is it an operator shorthand? e.g. { groups: { contains: system:sre } }
		if vMap, ok := v.(map[string]any); ok {
			foundOperator := false
			for opKey, opVal := range vMap {
				op := Operator(opKey)
				if op.IsValid() {
					sub.Operator = op
					sub.Value = opVal
					foundOperator = true
					break // only allow one operator per key (for now)
				}
			}
			// if no operator found, default to equals
			if !foundOperator {
				sub.Operator = OpEqual
				sub.Value = v
			}
		} else {
			// simple key: value equality
			sub.Operator = OpEqual
			sub.Value = v
		}

		children = append(children, sub)
	}

	if len(children) == 1 {
		// exactly one child can be used directly
		*c = children[0]
	} else {
		// otherwise implicit AND
		c.All = children
	}

	return nil
}

func (c *Condition) Validate() error {
	if c == nil {
		return nil
	}

	// validate logic nodes
	hasAll := len(c.All) > 0
	hasAny := len(c.Any) > 0
	hasNot := c.Not != nil
	hasLeaf := c.Key != ""

	if hasAll {
		for _, sub := range c.All {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
	}
	if hasAny {
		for _, sub := range c.Any {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
	}
	if hasNot {
		if err := c.Not.Validate(); err != nil {
			return err
		}
	}
	if hasLeaf {
		if !c.Operator.IsValid() {
			return fmt.Errorf("invalid operator '%s' for key '%s'", c.Operator, c.Key)
		}
	}

	// make sure only one of the types is used
	count := 0
	if hasAll {
		count++
	}
	if hasAny {
		count++
	}
	if hasNot {
		count++
	}
	if hasLeaf {
		count++
	}
	if count > 1 {
		return fmt.Errorf("condition for key '%s' has multiple types set (all, any, not, leaf); only one is allowed", c.Key)
	} else if count == 0 {
		return fmt.Errorf("condition is missing required fields; must be one of (all, any, not, leaf)")
	} else {
		return nil
	}
}
