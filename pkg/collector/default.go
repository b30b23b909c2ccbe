// Package collector provides generic result collectors for diagnosis sessions.
package collector

import (
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/session"
)

// DefaultResult is the plain outcome of a session run: the tags nothing was
// derived from, grouped by type, and the condition failures of every rule.
type DefaultResult[I any] struct {
	Input             I                                    `json:"input"`
	EndTags           map[string][]domain.Tag              `json:"end_tags"`
	ConditionFailures map[string][]domain.ConditionFailure `json:"condition_failures,omitempty"`
}

// Tags returns the end tags of the given type.
func (r DefaultResult[I]) Tags(tagType string) []domain.Tag {
	return r.EndTags[tagType]
}

// Values returns the values of the end tags of the given type.
func (r DefaultResult[I]) Values(tagType string) []any {
	tags := r.EndTags[tagType]
	if len(tags) == 0 {
		return nil
	}
	values := make([]any, len(tags))
	for i, t := range tags {
		values[i] = t.Value
	}
	return values
}

// Default returns a collector producing a DefaultResult.
func Default[I any]() session.ResultCollector[I, DefaultResult[I]] {
	return session.CollectorFunc[I, DefaultResult[I]](collect[I])
}

func collect[I any](c *session.Context[I]) (DefaultResult[I], error) {
	storage := c.Storage()
	result := DefaultResult[I]{
		Input:   c.Input(),
		EndTags: storage.MapTags(domain.TagLeaf),
	}
	for _, out := range storage.OutputsWithConditionFailures() {
		if result.ConditionFailures == nil {
			result.ConditionFailures = make(map[string][]domain.ConditionFailure)
		}
		result.ConditionFailures[out.RuleName] = append(result.ConditionFailures[out.RuleName], out.ConditionFailures...)
	}
	return result, nil
}

// EndTags returns a collector producing only the leaf tags of a run.
func EndTags[I any]() session.ResultCollector[I, map[string][]domain.Tag] {
	return session.CollectorFunc[I, map[string][]domain.Tag](func(c *session.Context[I]) (map[string][]domain.Tag, error) {
		return c.Storage().MapTags(domain.TagLeaf), nil
	})
}
