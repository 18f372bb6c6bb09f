package domain

import (
	"context"
	"fmt"
)

// Pseudo-node names delimiting every graph.
const (
	Start = "__start__"
	End   = "__end__"
)

// NodeFunc is a workflow step. It receives the current state and returns a partial
// state that is merged back with State.Merge.
type NodeFunc func(ctx context.Context, state State) (State, error)

// BranchFunc decides, from the current state, which node runs next.
type BranchFunc func(ctx context.Context, state State) (string, error)

// Node is a named step of the workflow.
type Node struct {
	Name        string
	Func        NodeFunc
	Description string
}

// Edge is an unconditional transition between two nodes. Source may be Start and
// Target may be End.
type Edge struct {
	Source string
	Target string
}

// Branch is the conditional routing attached to a node.
// Name is the identifier of the decision function in the compiled program.
// The engine never calls Decide: routing is decided remotely, and Decide is
// kept for callers and adapters that evaluate a branch themselves.
type Branch struct {
	Source  string
	Name    string
	Decide  BranchFunc
	Targets []string
}

// Graph is the workflow definition consumed by the compiler.
// Nodes keep their insertion order, which drives tool schema ordering.
type Graph struct {
	Name     string
	Nodes    []Node
	Edges    []Edge
	Branches []Branch
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// BranchOf returns the branch attached to the given node, if any.
func (g *Graph) BranchOf(name string) (Branch, bool) {
	for _, b := range g.Branches {
		if b.Source == name {
			return b, true
		}
	}
	return Branch{}, false
}

// Successors lists the unconditional targets of a node in edge order.
func (g *Graph) Successors(name string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.Source == name {
			out = append(out, e.Target)
		}
	}
	return out
}

// Functions returns the step-function registry embedded in the graph.
// Nodes without a function are skipped.
func (g *Graph) Functions() map[string]NodeFunc {
	fns := make(map[string]NodeFunc)
	for _, n := range g.Nodes {
		if n.Func != nil {
			fns[n.Name] = n.Func
		}
	}
	return fns
}

// Clone returns a copy whose slices are not shared with g.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Name:     g.Name,
		Nodes:    append([]Node(nil), g.Nodes...),
		Edges:    append([]Edge(nil), g.Edges...),
		Branches: make([]Branch, len(g.Branches)),
	}
	for i, b := range g.Branches {
		b.Targets = append([]string(nil), b.Targets...)
		c.Branches[i] = b
	}
	return c
}

// Validate checks the structural rules every graph must satisfy.
func (g *Graph) Validate() error {
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Name == "" {
			return fmt.Errorf("%w: node with empty name", ErrInvalidGraph)
		}
		if n.Name == Start || n.Name == End {
			return fmt.Errorf("%w: %q is a reserved node name", ErrInvalidGraph, n.Name)
		}
		if seen[n.Name] {
			return fmt.Errorf("%w: duplicate node %q", ErrInvalidGraph, n.Name)
		}
		seen[n.Name] = true
	}

	known := func(name string) bool { return name == Start || name == End || seen[name] }

	for _, e := range g.Edges {
		if !known(e.Source) || e.Source == End {
			return fmt.Errorf("%w: edge from unknown node %q", ErrInvalidGraph, e.Source)
		}
		if !known(e.Target) || e.Target == Start {
			return fmt.Errorf("%w: edge %q -> %q targets unknown node", ErrInvalidGraph, e.Source, e.Target)
		}
	}

	branched := make(map[string]bool, len(g.Branches))
	for _, b := range g.Branches {
		if !seen[b.Source] {
			return fmt.Errorf("%w: branch on unknown node %q", ErrInvalidGraph, b.Source)
		}
		if branched[b.Source] {
			return fmt.Errorf("%w: node %q has more than one branch", ErrInvalidGraph, b.Source)
		}
		branched[b.Source] = true
		if b.Name == "" {
			return fmt.Errorf("%w: branch on %q has no name", ErrInvalidGraph, b.Source)
		}
		for _, t := range b.Targets {
			if !known(t) || t == Start {
				return fmt.Errorf("%w: branch %q routes to unknown node %q", ErrInvalidGraph, b.Name, t)
			}
		}
	}
	return nil
}
