package ports

import "github.com/aretw0/rootcause/pkg/domain"

// OutputStorage holds the rule outputs of a single session.
// Implementations are owned by one session and need not be safe for concurrent use.
type OutputStorage interface {
	// Store appends outputs, assigning IDs to their tags.
	// It returns the outputs as stored. A tag whose parent is not stored
	// is rejected with domain.ErrUnknownParent and nothing is appended.
	Store(outputs ...domain.RuleOutput) ([]domain.RuleOutput, error)

	// AvailableTagTypes returns every tag type stored so far.
	AvailableTagTypes() map[string]struct{}

	// FindLatestResultsByTagType returns, in storage order, the outputs
	// holding at least one tag of a requested type.
	FindLatestResultsByTagType(types []string) []domain.RuleOutput

	// OutputsWithConditionFailures returns the outputs rejected by a rule condition.
	OutputsWithConditionFailures() []domain.RuleOutput

	// MapTags groups the stored tags in the given state by type.
	MapTags(state domain.TagState) map[string][]domain.Tag

	// MarkConsumed moves the given tags to NON_LEAF once a rule used them as input.
	MarkConsumed(ids ...domain.TagID)

	// Tag returns the current record of a stored tag.
	Tag(id domain.TagID) (domain.Tag, bool)

	// Unwrap walks from the tag towards the root and collects the nearest
	// tag of each requested type. The start tag is always part of the result.
	Unwrap(id domain.TagID, types []string) []domain.Tag

	// Outputs returns every stored output in storage order.
	Outputs() []domain.RuleOutput

	// Clear drops all outputs and tags.
	Clear()
}
