package dsl

import (
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	name  string
	order []string
	nodes map[string]*NodeBuilder
	entry []string
}

// New creates a new graph builder.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(name string, fn domain.NodeFunc) *NodeBuilder {
	if nb, ok := b.nodes[name]; ok {
		if fn != nil {
			nb.node.Func = fn
		}
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{Name: name, Func: fn},
		builder: b,
	}
	b.nodes[name] = nb
	b.order = append(b.order, name)
	return nb
}

// Entry connects START to the given node.
func (b *Builder) Entry(name string) *Builder {
	b.entry = append(b.entry, name)
	return b
}

// Build assembles and validates the graph.
// Nodes, edges and branches keep the order in which they were declared.
func (b *Builder) Build() (*domain.Graph, error) {
	g := &domain.Graph{Name: b.name}
	for _, target := range b.entry {
		g.Edges = append(g.Edges, domain.Edge{Source: domain.Start, Target: target})
	}
	for _, name := range b.order {
		nb := b.nodes[name]
		g.Nodes = append(g.Nodes, nb.node)
		for _, target := range nb.edges {
			g.Edges = append(g.Edges, domain.Edge{Source: name, Target: target})
		}
		if nb.branch != nil {
			g.Branches = append(g.Branches, *nb.branch)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build graph %q: %w", b.name, err)
	}
	return g, nil
}
