package memory

import (
	"fmt"

	"github.com/aretw0/rootcause/pkg/domain"
)

// outputRecord keeps an output with its tags as arena references, so that
// reads always observe the current LEAF/NON_LEAF state of each tag.
type outputRecord struct {
	ruleName   string
	resultType string
	tags       []domain.TagID
	failures   []domain.ConditionFailure
}

// Storage implements ports.OutputStorage with a flat tag arena.
// A tag's ID is its index in the arena and parents are stored as indexes,
// so a parent always precedes its children and chains cannot cycle.
// Storage is owned by a single session and is not safe for concurrent use.
type Storage struct {
	arena   []domain.Tag
	outputs []outputRecord
	byType  map[string][]domain.TagID
}

// NewStorage creates an empty storage.
func NewStorage() *Storage {
	return &Storage{
		byType: make(map[string][]domain.TagID),
	}
}

// Store appends outputs and assigns tag IDs in order.
func (s *Storage) Store(outputs ...domain.RuleOutput) ([]domain.RuleOutput, error) {
	for _, out := range outputs {
		for _, tag := range out.Tags {
			if tag.Parent != domain.NoTag && !s.has(tag.Parent) {
				return nil, fmt.Errorf("%w: tag %q of rule %q references %d", domain.ErrUnknownParent, tag.Type, out.RuleName, tag.Parent)
			}
		}
	}

	stored := make([]domain.RuleOutput, 0, len(outputs))
	for _, out := range outputs {
		rec := outputRecord{
			ruleName:   out.RuleName,
			resultType: out.ResultType,
		}
		if len(out.ConditionFailures) > 0 {
			rec.failures = append([]domain.ConditionFailure(nil), out.ConditionFailures...)
		}
		for _, tag := range out.Tags {
			rec.tags = append(rec.tags, s.push(tag))
		}
		s.outputs = append(s.outputs, rec)
		stored = append(stored, s.materialize(rec))
	}
	return stored, nil
}

func (s *Storage) has(id domain.TagID) bool {
	return id >= 0 && int(id) < len(s.arena)
}

func (s *Storage) push(tag domain.Tag) domain.TagID {
	id := domain.TagID(len(s.arena))
	tag.ID = id
	tag.State = domain.TagLeaf
	s.arena = append(s.arena, tag)
	s.byType[tag.Type] = append(s.byType[tag.Type], id)
	if tag.Parent != domain.NoTag {
		s.arena[tag.Parent].State = domain.TagNonLeaf
	}
	return id
}

func (s *Storage) materialize(rec outputRecord) domain.RuleOutput {
	out := domain.RuleOutput{
		RuleName:   rec.ruleName,
		ResultType: rec.resultType,
	}
	if len(rec.failures) > 0 {
		out.ConditionFailures = append([]domain.ConditionFailure(nil), rec.failures...)
	}
	if len(rec.tags) > 0 {
		out.Tags = make([]domain.Tag, len(rec.tags))
		for i, id := range rec.tags {
			out.Tags[i] = s.arena[id]
		}
	}
	return out
}

// AvailableTagTypes returns every stored tag type.
func (s *Storage) AvailableTagTypes() map[string]struct{} {
	types := make(map[string]struct{}, len(s.byType))
	for t := range s.byType {
		types[t] = struct{}{}
	}
	return types
}

// FindLatestResultsByTagType returns the outputs holding a tag of any requested type.
func (s *Storage) FindLatestResultsByTagType(types []string) []domain.RuleOutput {
	wanted := make(map[string]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}

	var result []domain.RuleOutput
	for _, rec := range s.outputs {
		for _, id := range rec.tags {
			if _, ok := wanted[s.arena[id].Type]; ok {
				result = append(result, s.materialize(rec))
				break
			}
		}
	}
	return result
}

// OutputsWithConditionFailures returns the outputs rejected by a condition.
func (s *Storage) OutputsWithConditionFailures() []domain.RuleOutput {
	var result []domain.RuleOutput
	for _, rec := range s.outputs {
		if len(rec.failures) > 0 {
			result = append(result, s.materialize(rec))
		}
	}
	return result
}

// MapTags groups the tags in the given state by type, in ID order.
func (s *Storage) MapTags(state domain.TagState) map[string][]domain.Tag {
	result := make(map[string][]domain.Tag)
	for _, tag := range s.arena {
		if tag.State == state {
			result[tag.Type] = append(result[tag.Type], tag)
		}
	}
	return result
}

// MarkConsumed moves the given tags to NON_LEAF. Unknown IDs are ignored.
func (s *Storage) MarkConsumed(ids ...domain.TagID) {
	for _, id := range ids {
		if s.has(id) {
			s.arena[id].State = domain.TagNonLeaf
		}
	}
}

// Tag returns a stored tag.
func (s *Storage) Tag(id domain.TagID) (domain.Tag, bool) {
	if !s.has(id) {
		return domain.Tag{}, false
	}
	return s.arena[id], true
}

// Unwrap collects the start tag and the nearest ancestor of each requested type.
func (s *Storage) Unwrap(id domain.TagID, types []string) []domain.Tag {
	if !s.has(id) {
		return nil
	}
	wanted := make(map[string]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}

	start := s.arena[id]
	result := []domain.Tag{start}
	seen := map[string]struct{}{start.Type: {}}
	for cur := start.Parent; cur != domain.NoTag; cur = s.arena[cur].Parent {
		tag := s.arena[cur]
		if _, ok := wanted[tag.Type]; !ok {
			continue
		}
		if _, dup := seen[tag.Type]; dup {
			continue
		}
		seen[tag.Type] = struct{}{}
		result = append(result, tag)
	}
	return result
}

// Outputs returns every stored output.
func (s *Storage) Outputs() []domain.RuleOutput {
	result := make([]domain.RuleOutput, 0, len(s.outputs))
	for _, rec := range s.outputs {
		result = append(result, s.materialize(rec))
	}
	return result
}

// Len returns the number of stored outputs.
func (s *Storage) Len() int {
	return len(s.outputs)
}

// Clear drops every output and tag.
func (s *Storage) Clear() {
	s.arena = nil
	s.outputs = nil
	s.byType = make(map[string][]domain.TagID)
}
