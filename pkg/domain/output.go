package domain

// ConditionFailure records a rule condition that rejected an input.
type ConditionFailure struct {
	RuleName      string `json:"rule_name"`
	ConditionName string `json:"condition_name"`
	Hint          string `json:"hint,omitempty"`
}

// RuleOutput is the result of executing one rule against one input.
// An output carrying condition failures has no tags.
type RuleOutput struct {
	RuleName          string             `json:"rule_name"`
	ResultType        string             `json:"result_type"`
	Tags              []Tag              `json:"tags,omitempty"`
	ConditionFailures []ConditionFailure `json:"condition_failures,omitempty"`
}

// HasConditionFailures reports whether any condition rejected the input.
func (o RuleOutput) HasConditionFailures() bool {
	return len(o.ConditionFailures) > 0
}

// TriggerOutput is the seed output of a session, wrapping the input in a root tag.
func TriggerOutput(input any) RuleOutput {
	return RuleOutput{
		RuleName:   TriggerRuleName,
		ResultType: RootTagType,
		Tags:       []Tag{RootTag(input)},
	}
}
