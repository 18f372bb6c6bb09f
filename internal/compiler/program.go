package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

const indentUnit = "    "

// emitter accumulates program lines during the walk.
type emitter struct {
	c     *Compiler
	lines []string
	err   error
}

func (e *emitter) emit(indent int, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if line == "" {
		e.lines = append(e.lines, "")
		return
	}
	e.lines = append(e.lines, strings.Repeat(indentUnit, indent)+line)
}

// synthesize walks the graph depth first from the successor of START.
func (c *Compiler) synthesize() (string, error) {
	e := &emitter{c: c}
	e.emit(0, "# Module-level code - assumes initial_state is predefined")
	e.emit(0, "state = initial_state")
	e.emit(0, "")

	entry := c.graph.Successors(domain.Start)
	if len(entry) == 0 {
		e.emit(0, "# Extract final result for user")
		e.emit(0, "final_return_value = state.get('%s', state)", domain.KeyResult)
		return strings.Join(e.lines, "\n"), nil
	}

	e.walk(domain.Start, entry[0], make(map[string]bool), 0)
	if e.err != nil {
		return "", e.err
	}

	e.emit(0, "")
	e.emit(0, "# Extract final result for user")
	e.emit(0, "final_return_value = state.get('%s', state)", domain.KeyResult)
	return strings.Join(e.lines, "\n"), nil
}

// walk emits the code of node and its successors. visited holds the nodes on the
// current path; branch arms receive their own copy.
func (e *emitter) walk(from, node string, visited map[string]bool, indent int) {
	if e.err != nil || node == domain.End {
		return
	}
	if visited[node] {
		if e.c.policy == RejectCycles {
			e.err = fmt.Errorf("%w: edge %q -> %q closes a cycle", domain.ErrCyclicGraph, from, node)
		}
		return
	}
	visited[node] = true

	call := e.c.callName(node)
	e.emit(indent, "# Node: %s", node)
	e.emit(indent, "%s_result = %s(state=state)", node, call)
	e.emit(indent, "# Update state")
	e.emit(indent, "for key, value in %s_result.items():", node)
	e.emit(indent, "    if key in state:")
	e.emit(indent, "        if isinstance(value, list) and isinstance(state[key], list):")
	e.emit(indent, "            state[key].extend(value)")
	e.emit(indent, "        else:")
	e.emit(indent, "            state[key] = value")
	e.emit(indent, "    else:")
	e.emit(indent, "        state[key] = value")
	e.emit(0, "")

	if br, ok := e.c.graph.BranchOf(node); ok {
		e.branch(node, br, visited, indent)
		return
	}

	next := e.c.graph.Successors(node)
	if len(next) > 0 && next[0] != domain.End {
		e.walk(node, next[0], visited, indent)
	}
}

func (e *emitter) branch(node string, br domain.Branch, visited map[string]bool, indent int) {
	e.emit(indent, "# Conditional routing")
	e.emit(indent, "next_node = %s(state=state)", br.Name)
	e.emit(0, "")

	for i, target := range branchTargets(e.c.graph, node, br) {
		keyword := "elif"
		if i == 0 {
			keyword = "if"
		}
		e.emit(indent, "%s next_node == '%s':", keyword, target)

		before := len(e.lines)
		arm := make(map[string]bool, len(visited))
		for k := range visited {
			arm[k] = true
		}
		e.walk(node, target, arm, indent+1)
		if len(e.lines) == before {
			e.emit(indent+1, "pass")
		}
	}
}

// branchTargets is the sorted union of the branch targets and the node's
// unconditional successors other than END.
func branchTargets(g *domain.Graph, node string, br domain.Branch) []string {
	set := make(map[string]bool)
	for _, t := range br.Targets {
		set[t] = true
	}
	for _, t := range g.Successors(node) {
		if t != domain.End {
			set[t] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// callName is the function identifier used for node in the program.
func (c *Compiler) callName(node string) string {
	if name, ok := c.internal[node]; ok && name != "" {
		return name
	}
	return node
}
