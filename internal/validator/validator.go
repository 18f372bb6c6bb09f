package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// Report lists the problems found in a graph. Errors prevent compilation or
// running; warnings describe parts the compiled program will silently ignore.
type Report struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the graph has no errors.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

// Err folds the errors into one error, or nil.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: found %d errors:\n- %s", domain.ErrInvalidGraph, len(r.Errors), strings.Join(r.Errors, "\n- "))
}

// ValidateGraph checks for broken links, unreachable nodes and nodes without
// an implementation. internal maps nodes executed by the orchestrator.
func ValidateGraph(g *domain.Graph, internal map[string]string) Report {
	var r Report
	if g == nil {
		r.Errors = append(r.Errors, "graph is nil")
		return r
	}
	if err := g.Validate(); err != nil {
		r.Errors = append(r.Errors, err.Error())
		return r
	}

	for _, n := range g.Nodes {
		if _, ok := internal[n.Name]; !ok && n.Func == nil {
			r.Errors = append(r.Errors, fmt.Sprintf("node '%s' has no function and is not internal", n.Name))
		}
	}
	for name := range internal {
		if _, ok := g.Node(name); !ok {
			r.Warnings = append(r.Warnings, fmt.Sprintf("internal mapping names unknown node '%s'", name))
		}
	}

	entry := g.Successors(domain.Start)
	switch {
	case len(entry) == 0:
		r.Errors = append(r.Errors, "no edge leaves START")
		return r
	case len(entry) > 1:
		r.Warnings = append(r.Warnings, fmt.Sprintf("START has %d edges; only '%s' is compiled", len(entry), entry[0]))
	}

	for _, n := range g.Nodes {
		succ := g.Successors(n.Name)
		_, branched := g.BranchOf(n.Name)
		switch {
		case branched:
		case len(succ) == 0:
			r.Warnings = append(r.Warnings, fmt.Sprintf("node '%s' has no outgoing edge", n.Name))
		case len(succ) > 1:
			r.Warnings = append(r.Warnings, fmt.Sprintf("node '%s' has %d edges and no branch; only '%s' is followed", n.Name, len(succ), succ[0]))
		}
	}

	reachable := crawl(g, entry[0])
	var unreachable []string
	for _, n := range g.Nodes {
		if !reachable[n.Name] {
			unreachable = append(unreachable, n.Name)
		}
	}
	sort.Strings(unreachable)
	for _, name := range unreachable {
		r.Warnings = append(r.Warnings, fmt.Sprintf("node '%s' is unreachable from START", name))
	}

	for _, edge := range backEdges(g, entry[0]) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("edge '%s' -> '%s' closes a cycle; the loop is not compiled", edge[0], edge[1]))
	}
	return r
}

// next lists the nodes the program can move to from node.
func next(g *domain.Graph, node string) []string {
	out := g.Successors(node)
	if br, ok := g.BranchOf(node); ok {
		out = append(out, br.Targets...)
	}
	return out
}

// crawl returns the nodes reachable from start.
func crawl(g *domain.Graph, start string) map[string]bool {
	visited := make(map[string]bool)
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] || current == domain.End {
			continue
		}
		visited[current] = true
		for _, t := range next(g, current) {
			if !visited[t] {
				queue = append(queue, t)
			}
		}
	}
	return visited
}

// backEdges returns the edges that point to a node on the current DFS path.
func backEdges(g *domain.Graph, start string) [][2]string {
	var out [][2]string
	onPath := make(map[string]bool)
	done := make(map[string]bool)
	seen := make(map[[2]string]bool)

	var visit func(node string)
	visit = func(node string) {
		onPath[node] = true
		for _, t := range next(g, node) {
			if t == domain.End {
				continue
			}
			if onPath[t] {
				e := [2]string{node, t}
				if !seen[e] {
					seen[e] = true
					out = append(out, e)
				}
				continue
			}
			if !done[t] {
				visit(t)
			}
		}
		onPath[node] = false
		done[node] = true
	}
	visit(start)
	return out
}
