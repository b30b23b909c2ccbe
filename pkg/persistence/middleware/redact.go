package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.ResultStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks the values of result
// fields whose key matches one of the patterns, at any depth.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.ResultStore) ports.ResultStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, record *domain.Record) error {
	if len(record.Result) == 0 || len(m.patterns) == 0 {
		return m.next.Save(ctx, record)
	}

	// Work on a decoded copy; the caller's record is left untouched.
	var doc any
	if err := json.Unmarshal(record.Result, &doc); err != nil {
		return fmt.Errorf("failed to decode result for redaction: %w", err)
	}
	maskValue(doc, m.patterns)
	masked, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	cloned := *record
	cloned.Result = masked
	return m.next.Save(ctx, &cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, id string) (*domain.Record, error) {
	return m.next.Load(ctx, id)
}

func (m *redactMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func maskValue(v any, patterns []*regexp.Regexp) {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			if matchAny(k, patterns) {
				val[k] = Mask
				continue
			}
			maskValue(sub, patterns)
		}
	case []any:
		for _, sub := range val {
			maskValue(sub, patterns)
		}
	}
}

func matchAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
