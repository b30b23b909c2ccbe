package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/rootcause/pkg/domain"
)

// Labeler renders the text shown inside a tag's box.
type Labeler func(domain.Tag) string

// GenerateMermaid produces a Mermaid flowchart of a derivation tree.
// It applies semantic styling:
// - Root (the input): ((Circle))
// - Leaf (a result): ([Stadium]), styled with the "leaf" class
// - Default: [Rectangle]
// Tags whose parent is not in the list are drawn without an incoming edge.
func GenerateMermaid(tags []domain.Tag, label Labeler) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	present := make(map[domain.TagID]bool, len(tags))
	for _, tag := range tags {
		present[tag.ID] = true
	}

	var leaves []string
	for _, tag := range tags {
		id := nodeID(tag.ID)

		opener, closer := "[", "]"
		switch {
		case tag.IsRoot():
			opener, closer = "((", "))"
		case tag.State == domain.TagLeaf:
			opener, closer = "([", "])"
			leaves = append(leaves, id)
		}

		text := tag.Type
		if label != nil {
			if l := label(tag); l != "" {
				text += "<br/>" + l
			}
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, sanitizeLabel(text), closer)

		if !tag.IsRoot() && present[tag.Parent] {
			fmt.Fprintf(&sb, "    %s --> %s\n", nodeID(tag.Parent), id)
		}
	}

	if len(leaves) > 0 {
		sb.WriteString("\n    %% Leaf Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef leaf fill:#ffeb3b,stroke:#fbc02d,stroke-width:2px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s leaf;\n", strings.Join(leaves, ","))
	}

	return sb.String()
}

func nodeID(id domain.TagID) string {
	return fmt.Sprintf("t%d", id)
}

func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
