package diagnosis

import (
	"fmt"

	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/session"
	"github.com/aretw0/rootcause/pkg/trace"
)

// Report is the outcome of diagnosing one trace.
type Report struct {
	TraceID           string                    `json:"trace_id"`
	Duration          float64                   `json:"duration"`
	Occurrences       []ProblemOccurrence       `json:"occurrences"`
	ConditionFailures []domain.ConditionFailure `json:"condition_failures,omitempty"`

	// Derivation holds every tag of the run in storage order.
	Derivation []domain.Tag `json:"-"`
}

// ProblemOccurrence is one performance problem found in a trace.
type ProblemOccurrence struct {
	TraceID        string         `json:"trace_id"`
	GlobalContext  trace.Ref      `json:"global_context"`
	ProblemContext trace.Ref      `json:"problem_context"`
	Operation      string         `json:"operation"`
	RootCause      RootCauseRef   `json:"root_cause"`
	CauseStructure CauseStructure `json:"cause_structure"`
}

// RootCauseRef summarises the root cause calls of an occurrence.
type RootCauseRef struct {
	Signature string       `json:"signature"`
	Source    trace.Source `json:"source"`
	Exclusive float64      `json:"exclusive"`
	Calls     []string     `json:"calls"`
}

// Collector builds a Report out of every CauseStructure tag left at the end
// of a run.
func Collector() session.ResultCollector[*trace.Invocation, *Report] {
	return session.CollectorFunc[*trace.Invocation, *Report](collect)
}

func collect(c *session.Context[*trace.Invocation]) (*Report, error) {
	report := &Report{Occurrences: []ProblemOccurrence{}}
	if root := c.Input(); root != nil {
		report.TraceID = root.ID
		report.Duration = root.Duration
	}

	storage := c.Storage()
	for _, out := range storage.Outputs() {
		report.ConditionFailures = append(report.ConditionFailures, out.ConditionFailures...)
		report.Derivation = append(report.Derivation, out.Tags...)
	}

	for _, leaf := range storage.MapTags(domain.TagLeaf)[TagCauseStructure] {
		occ, err := occurrence(c, leaf)
		if err != nil {
			return nil, err
		}
		report.Occurrences = append(report.Occurrences, occ)
	}
	return report, nil
}

func occurrence(c *session.Context[*trace.Invocation], leaf domain.Tag) (ProblemOccurrence, error) {
	occ := ProblemOccurrence{TraceID: c.Input().ID}

	for tag, ok := leaf, true; ok; tag, ok = c.Storage().Tag(tag.Parent) {
		switch tag.Type {
		case TagCauseStructure:
			cs, _ := tag.Value.(*CauseStructure)
			if cs != nil {
				occ.CauseStructure = *cs
			}
		case TagRootCause:
			rc, _ := tag.Value.(*RootCause)
			if rc != nil {
				occ.RootCause = RootCauseRef{Signature: rc.Signature, Source: rc.Source, Exclusive: rc.Exclusive}
				for _, call := range rc.Calls {
					occ.RootCause.Calls = append(occ.RootCause.Calls, call.ID)
				}
			}
		case TagProblemContext:
			pc, _ := tag.Value.(*ProblemContext)
			if pc != nil {
				occ.ProblemContext = pc.Context.Ref()
				occ.Operation = pc.Operation.Signature
			}
		case TagGlobalContext:
			gc, err := asInvocation(tag.Value)
			if err != nil {
				return occ, err
			}
			occ.GlobalContext = gc.Ref()
		}
		if tag.IsRoot() {
			break
		}
	}

	if occ.ProblemContext.ID == "" || occ.GlobalContext.ID == "" {
		return occ, fmt.Errorf("cause structure tag %d is not derived from a problem context", leaf.ID)
	}
	return occ, nil
}
