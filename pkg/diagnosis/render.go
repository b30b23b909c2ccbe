package diagnosis

import (
	"fmt"
	"strings"

	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/trace"
)

// Label summarises the value of a diagnosis tag in one line.
func Label(tag domain.Tag) string {
	switch v := tag.Value.(type) {
	case *trace.Invocation:
		return fmt.Sprintf("%s (%s, %gms)", v.Method, v.ID, v.Duration)
	case *Operation:
		return fmt.Sprintf("%s %s, %gms", v.Source, v.Signature, v.Exclusive)
	case *ProblemContext:
		return fmt.Sprintf("%s (%s), %d calls", v.Context.Method, v.Context.ID, len(v.Calls))
	case *RootCause:
		return fmt.Sprintf("%d calls, %gms", len(v.Calls), v.Exclusive)
	case *CauseStructure:
		if v.Type == CauseRecursive {
			return fmt.Sprintf("%s %s, depth %d", v.Type, v.Source, v.Depth)
		}
		return fmt.Sprintf("%s %s", v.Type, v.Source)
	case nil:
		return ""
	}
	return fmt.Sprint(tag.Value)
}

// Markdown renders the report as a Markdown document.
func Markdown(r *Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Diagnosis of `%s`\n\n", r.TraceID)
	fmt.Fprintf(&sb, "Trace duration: **%gms**, problems found: **%d**\n\n", r.Duration, len(r.Occurrences))

	for i, occ := range r.Occurrences {
		fmt.Fprintf(&sb, "## Problem %d: %s %s\n\n", i+1, occ.CauseStructure.Type, occ.CauseStructure.Source)
		sb.WriteString("| | |\n|---|---|\n")
		fmt.Fprintf(&sb, "| Global context | `%s` (%s, %gms) |\n", occ.GlobalContext.Method, occ.GlobalContext.ID, occ.GlobalContext.Duration)
		fmt.Fprintf(&sb, "| Problem context | `%s` (%s, %gms) |\n", occ.ProblemContext.Method, occ.ProblemContext.ID, occ.ProblemContext.Duration)
		fmt.Fprintf(&sb, "| Operation | `%s` |\n", escapeCell(occ.Operation))
		fmt.Fprintf(&sb, "| Root cause | %d calls, %gms exclusive |\n", len(occ.RootCause.Calls), occ.RootCause.Exclusive)
		if occ.CauseStructure.Type == CauseRecursive {
			fmt.Fprintf(&sb, "| Recursion depth | %d |\n", occ.CauseStructure.Depth)
		}
		sb.WriteString("\n")
	}

	if len(r.ConditionFailures) > 0 {
		sb.WriteString("## Not diagnosed\n\n")
		for _, f := range r.ConditionFailures {
			fmt.Fprintf(&sb, "- %s: %s", f.RuleName, f.ConditionName)
			if f.Hint != "" {
				fmt.Fprintf(&sb, " (%s)", f.Hint)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
