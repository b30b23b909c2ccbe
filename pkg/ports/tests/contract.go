package tests

import (
	"errors"
	"testing"

	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/ports"
)

// OutputStorageContractTest is a reusable test suite that verifies if an adapter complies with ports.OutputStorage.
// newStorage must return an empty storage on every call.
func OutputStorageContractTest(t *testing.T, newStorage func() ports.OutputStorage) {
	t.Helper()

	// seed stores Input -> A -> B -> C -> D and returns the stored D tag.
	seed := func(t *testing.T, s ports.OutputStorage) domain.Tag {
		t.Helper()
		stored, err := s.Store(domain.TriggerOutput("trace"))
		if err != nil {
			t.Fatalf("unexpected error storing trigger: %v", err)
		}
		parent := stored[0].Tags[0]
		for _, typ := range []string{"A", "B", "C", "D"} {
			in := domain.NewRuleInput(parent, []domain.Tag{parent})
			out, err := s.Store(domain.RuleOutput{
				RuleName:   "rule-" + typ,
				ResultType: typ,
				Tags:       []domain.Tag{in.Derive(typ, typ+"-value")},
			})
			if err != nil {
				t.Fatalf("unexpected error storing %s: %v", typ, err)
			}
			parent = out[0].Tags[0]
		}
		return parent
	}

	// 1. IDs are assigned and parents become non-leaf
	t.Run("Store_AssignsIDsAndLeafState", func(t *testing.T) {
		s := newStorage()
		d := seed(t, s)
		if d.ID == domain.NoTag {
			t.Fatal("stored tag has no ID")
		}
		if d.State != domain.TagLeaf {
			t.Errorf("expected newest tag to be LEAF, got %s", d.State)
		}
		parent, ok := s.Tag(d.Parent)
		if !ok {
			t.Fatalf("parent %d not found", d.Parent)
		}
		if parent.State != domain.TagNonLeaf {
			t.Errorf("expected parent to be NON_LEAF, got %s", parent.State)
		}
	})

	// 2. Unknown parents are rejected atomically
	t.Run("Store_UnknownParent", func(t *testing.T) {
		s := newStorage()
		_, err := s.Store(
			domain.TriggerOutput("trace"),
			domain.RuleOutput{RuleName: "orphan", ResultType: "X", Tags: []domain.Tag{{ID: domain.NoTag, Type: "X", Parent: 42}}},
		)
		if !errors.Is(err, domain.ErrUnknownParent) {
			t.Fatalf("expected ErrUnknownParent, got %v", err)
		}
		if n := len(s.Outputs()); n != 0 {
			t.Errorf("expected nothing stored, got %d outputs", n)
		}
	})

	// 3. Available tag types
	t.Run("AvailableTagTypes", func(t *testing.T) {
		s := newStorage()
		seed(t, s)
		types := s.AvailableTagTypes()
		for _, typ := range []string{domain.RootTagType, "A", "B", "C", "D"} {
			if _, ok := types[typ]; !ok {
				t.Errorf("tag type %s missing", typ)
			}
		}
	})

	// 4. Lookup by tag type keeps storage order
	t.Run("FindLatestResultsByTagType", func(t *testing.T) {
		s := newStorage()
		seed(t, s)
		outs := s.FindLatestResultsByTagType([]string{"D", "C"})
		if len(outs) != 2 {
			t.Fatalf("expected 2 outputs, got %d", len(outs))
		}
		if outs[0].RuleName != "rule-C" || outs[1].RuleName != "rule-D" {
			t.Errorf("unexpected order: %s, %s", outs[0].RuleName, outs[1].RuleName)
		}
	})

	// 5. Unwrap collects nearest ancestors
	t.Run("Unwrap", func(t *testing.T) {
		s := newStorage()
		d := seed(t, s)

		got := typesOf(s.Unwrap(d.ID, []string{"A", "B", "D"}))
		want := []string{"D", "B", "A"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("got %v, want %v", got, want)
				break
			}
		}

		only := s.Unwrap(d.ID, []string{"X", "Y", "Z"})
		if len(only) != 1 || only[0].ID != d.ID {
			t.Errorf("expected only the start tag, got %v", typesOf(only))
		}
	})

	// 6. Leaf mapping and condition failures
	t.Run("MapTags_And_ConditionFailures", func(t *testing.T) {
		s := newStorage()
		seed(t, s)
		_, err := s.Store(domain.RuleOutput{
			RuleName:          "rejecting",
			ResultType:        "E",
			ConditionFailures: []domain.ConditionFailure{{RuleName: "rejecting", ConditionName: "never", Hint: "always fails"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		leaves := s.MapTags(domain.TagLeaf)
		if len(leaves) != 1 || len(leaves["D"]) != 1 {
			t.Errorf("expected only D to be a leaf, got %v", leaves)
		}
		failed := s.OutputsWithConditionFailures()
		if len(failed) != 1 || failed[0].RuleName != "rejecting" {
			t.Errorf("unexpected condition failures: %v", failed)
		}
	})

	// 7. Consumption
	t.Run("MarkConsumed", func(t *testing.T) {
		s := newStorage()
		d := seed(t, s)
		s.MarkConsumed(d.ID, 999)
		tag, _ := s.Tag(d.ID)
		if tag.State != domain.TagNonLeaf {
			t.Errorf("expected consumed tag to be NON_LEAF, got %s", tag.State)
		}
		if leaves := s.MapTags(domain.TagLeaf); len(leaves) != 0 {
			t.Errorf("expected no leaves, got %v", leaves)
		}
	})

	// 8. Clear
	t.Run("Clear", func(t *testing.T) {
		s := newStorage()
		seed(t, s)
		s.Clear()
		if len(s.Outputs()) != 0 || len(s.AvailableTagTypes()) != 0 {
			t.Error("storage not empty after Clear")
		}
	})
}

func typesOf(tags []domain.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Type
	}
	return out
}
