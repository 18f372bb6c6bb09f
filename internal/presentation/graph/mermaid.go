package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	// Internal maps node names to the remote tool that implements them.
	Internal map[string]string
	// VisitedNodes are the nodes executed during a run, in order.
	VisitedNodes []string
}

// GenerateMermaid produces a Mermaid flowchart of g.
// It applies semantic styling:
//   - START and END: ((Circle))
//   - Internal node: [[Subroutine]], labelled with the remote tool
//   - Local node: [Rectangle]
//
// Conditional routes are dotted and labelled with the decision function.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var internal map[string]string
	if overlay != nil {
		internal = overlay.Internal
	}

	fmt.Fprintf(&sb, "    %s((\"START\"))\n", sanitizeMermaidID(domain.Start))
	for _, node := range g.Nodes {
		safeID := sanitizeMermaidID(node.Name)
		if tool, ok := internal[node.Name]; ok {
			fmt.Fprintf(&sb, "    %s[[\"%s <br/> %s\"]]\n", safeID, node.Name, tool)
			continue
		}
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", safeID, node.Name)
	}
	fmt.Fprintf(&sb, "    %s((\"END\"))\n", sanitizeMermaidID(domain.End))

	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target))
	}
	for _, b := range g.Branches {
		targets := append([]string(nil), b.Targets...)
		sort.Strings(targets)
		label := strings.ReplaceAll(b.Name, "\"", "'")
		for _, t := range targets {
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", sanitizeMermaidID(b.Source), label, sanitizeMermaidID(t))
		}
	}

	if overlay != nil && len(overlay.VisitedNodes) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(name)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
