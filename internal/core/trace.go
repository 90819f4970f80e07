package core

// EvaluationTrace captures the detailed trace of a datasource access evaluation.
type EvaluationTrace struct {
	// CorrelationID is the unique identifier for the evaluation request.
	CorrelationID string `yaml:"correlation_id" json:"correlation_id"`

	// Identity being evaluated.
	Identity *Identity `yaml:"identity" json:"identity"`

	// RuleResults contains the result of every rule evaluated.
	RuleResults []RuleResult `yaml:"rule_results" json:"rule_results"`

	// Datasources the identity may access after applying all rules.
	Datasources []string `yaml:"datasources" json:"datasources"`
}

// RuleResult captures why a specific rule matched or failed.
type RuleResult struct {
	RuleName         string            `yaml:"rule_name" json:"rule_name"`
	Description      string            `yaml:"description" json:"description"`
	Matched          bool              `yaml:"matched" json:"matched"`
	ConditionResults []ConditionResult `json:"condition_results,omitempty"`
}
