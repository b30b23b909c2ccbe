package rule

import (
	"sort"

	"github.com/aretw0/rootcause/pkg/domain"
)

// Rule is a unit of inference. It fires once per distinct input whose tag
// types satisfy its FireCondition and produces one output per input.
type Rule interface {
	Name() string
	Description() string
	FireCondition() FireCondition
	Execute(input domain.RuleInput, vars domain.SessionVariables) (domain.RuleOutput, error)
}

// FireCondition is the set of tag types a rule needs to fire.
type FireCondition struct {
	types []string
}

// NewFireCondition creates a condition over the given tag types.
// Duplicates are removed and the order is normalised.
func NewFireCondition(types ...string) FireCondition {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return FireCondition{types: out}
}

// TagTypes returns the required tag types.
func (c FireCondition) TagTypes() []string {
	return append([]string(nil), c.types...)
}

// CanFire reports whether every required type is available.
func (c FireCondition) CanFire(available map[string]struct{}) bool {
	for _, t := range c.types {
		if _, ok := available[t]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the required types absent from the given tags.
func (c FireCondition) Missing(tags []domain.Tag) []string {
	present := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		present[t.Type] = struct{}{}
	}
	var missing []string
	for _, t := range c.types {
		if _, ok := present[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

// Len returns the number of required types.
func (c FireCondition) Len() int {
	return len(c.types)
}

// Contains reports whether the tag type is required.
func (c FireCondition) Contains(tagType string) bool {
	i := sort.SearchStrings(c.types, tagType)
	return i < len(c.types) && c.types[i] == tagType
}
