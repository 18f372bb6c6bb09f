package dsl

import "github.com/aretw0/lattice/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	edges   []string
	branch  *domain.Branch
	builder *Builder
}

// Describe sets the tool description surfaced to the remote planner.
func (n *NodeBuilder) Describe(text string) *NodeBuilder {
	n.node.Description = text
	return n
}

// Go adds an unconditional transition to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.edges = append(n.edges, target)
	return n
}

// Branch attaches conditional routing to the node.
// A second call replaces the first, since a node carries at most one branch.
func (n *NodeBuilder) Branch(name string, decide domain.BranchFunc, targets ...string) *NodeBuilder {
	n.branch = &domain.Branch{
		Source:  n.node.Name,
		Name:    name,
		Decide:  decide,
		Targets: append([]string(nil), targets...),
	}
	return n
}

// Terminal routes the node to END.
func (n *NodeBuilder) Terminal() *NodeBuilder {
	return n.Go(domain.End)
}

// Build returns the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}
