package domain

import (
	"sort"
	"strconv"
	"strings"
)

// TagID is the position of a tag inside a session's tag arena.
type TagID int

// NoTag marks the absence of a tag reference: the parent of a root tag,
// or the ID of a tag that has not been stored yet.
const NoTag TagID = -1

const (
	// RootTagType is the type of the synthetic tag wrapping the raw input of a session.
	RootTagType = "Input"

	// TriggerRuleName is the name attached to the output that seeds every session.
	TriggerRuleName = "TRIGGER_RULE"
)

// TagState tells whether any tag has been derived from a tag.
type TagState string

const (
	TagLeaf    TagState = "LEAF"     // Nothing derived from it yet
	TagNonLeaf TagState = "NON_LEAF" // At least one child tag stored
)

// Tag is a typed value in the derivation tree of a session.
// Parent refers to the tag it was derived from (NoTag for the root).
type Tag struct {
	ID     TagID    `json:"id"`
	Type   string   `json:"type"`
	Value  any      `json:"value"`
	Parent TagID    `json:"parent"`
	State  TagState `json:"state"`
}

// IsRoot reports whether the tag has no parent.
func (t Tag) IsRoot() bool {
	return t.Parent == NoTag
}

// RootTag wraps an input into an unstored root tag.
func RootTag(input any) Tag {
	return Tag{
		ID:     NoTag,
		Type:   RootTagType,
		Value:  input,
		Parent: NoTag,
		State:  TagLeaf,
	}
}

// RuleInput is one concrete set of tags a rule executes on.
// Root is the tag the candidate was found by; Tags holds the nearest
// ancestor of each required type (Root included), ordered by ID.
type RuleInput struct {
	Root Tag   `json:"root"`
	Tags []Tag `json:"tags"`
}

// NewRuleInput builds a RuleInput and normalises the tag order.
func NewRuleInput(root Tag, tags []Tag) RuleInput {
	sorted := make([]Tag, len(tags))
	copy(sorted, tags)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return RuleInput{Root: root, Tags: sorted}
}

// Key identifies the input in execution ledgers.
func (in RuleInput) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(in.Root.ID)))
	b.WriteByte('|')
	for i, t := range in.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(t.ID)))
	}
	return b.String()
}

// Get returns the tag of the given type.
func (in RuleInput) Get(tagType string) (Tag, bool) {
	for _, t := range in.Tags {
		if t.Type == tagType {
			return t, true
		}
	}
	return Tag{}, false
}

// Value returns the value of the tag of the given type, or nil.
func (in RuleInput) Value(tagType string) any {
	t, ok := in.Get(tagType)
	if !ok {
		return nil
	}
	return t.Value
}

// Values maps every tag type of the input to its value.
func (in RuleInput) Values() map[string]any {
	out := make(map[string]any, len(in.Tags))
	for _, t := range in.Tags {
		out[t.Type] = t.Value
	}
	return out
}

// Derive creates an unstored tag whose parent is the input root.
func (in RuleInput) Derive(tagType string, value any) Tag {
	return Tag{
		ID:     NoTag,
		Type:   tagType,
		Value:  value,
		Parent: in.Root.ID,
		State:  TagLeaf,
	}
}
