package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/pkg/domain"
)

func sample() *domain.Graph {
	return &domain.Graph{
		Name: "sample",
		Nodes: []domain.Node{
			{Name: "fetch-posts"},
			{Name: "review"},
			{Name: "send.mail"},
		},
		Edges: []domain.Edge{
			{Source: domain.Start, Target: "fetch-posts"},
			{Source: "fetch-posts", Target: "review"},
			{Source: "send.mail", Target: domain.End},
		},
		Branches: []domain.Branch{
			{Source: "review", Name: `route"x`, Targets: []string{"send.mail", "fetch-posts"}},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Shapes And Sanitization",
			contains: []string{
				"graph TD\n",
				`__start__(("START"))`,
				`__end__(("END"))`,
				`fetch_posts["fetch-posts"]`,
				`send_mail["send.mail"]`,
				"__start__ --> fetch_posts",
				"send_mail --> __end__",
			},
			excludes: []string{"classDef"},
		},
		{
			name: "Branch Routes Sorted And Escaped",
			contains: []string{
				"review -. \"route'x\" .-> fetch_posts\n    review -. \"route'x\" .-> send_mail",
			},
		},
		{
			name:    "Internal Nodes",
			overlay: &graph.GraphOverlay{Internal: map[string]string{"send.mail": "send_email"}},
			contains: []string{
				`send_mail[["send.mail <br/> send_email"]]`,
			},
		},
		{
			name:    "Visited Overlay Deduplicated",
			overlay: &graph.GraphOverlay{VisitedNodes: []string{"fetch-posts", "review", "fetch-posts"}},
			contains: []string{
				"classDef visited",
				"class fetch_posts visited;",
				"class review visited;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(sample(), tt.overlay)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, bad := range tt.excludes {
				assert.NotContains(t, got, bad)
			}
			if tt.overlay != nil && len(tt.overlay.VisitedNodes) > 0 {
				assert.Equal(t, 1, strings.Count(got, "class fetch_posts visited;"))
			}
		})
	}
}
