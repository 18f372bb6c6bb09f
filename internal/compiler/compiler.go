package compiler

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aretw0/lattice/pkg/domain"
)

// CyclePolicy decides what happens when the program walk meets a node already
// visited on the current path.
type CyclePolicy int

const (
	// TruncateCycles stops the walk at the back edge and keeps compiling.
	TruncateCycles CyclePolicy = iota
	// RejectCycles makes New fail with domain.ErrCyclicGraph.
	RejectCycles
)

func (p CyclePolicy) String() string {
	if p == RejectCycles {
		return "reject"
	}
	return "truncate"
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithNodeFunctions supplies the step-function map explicitly.
// When omitted the functions embedded in the graph nodes are used.
func WithNodeFunctions(fns map[string]domain.NodeFunc) Option {
	return func(c *Compiler) {
		c.explicit = fns
	}
}

// WithInternalNodes marks nodes as handled by the remote planner.
// The map goes from node name to the internal tool name the planner knows it by.
func WithInternalNodes(mapping map[string]string) Option {
	return func(c *Compiler) {
		for k, v := range mapping {
			c.internal[k] = v
		}
	}
}

// WithCyclePolicy selects how cycles are handled during synthesis.
func WithCyclePolicy(p CyclePolicy) Option {
	return func(c *Compiler) {
		c.policy = p
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// Compiler turns a workflow graph into the program text, the node partition and
// the tool schemas of a run. It is immutable after New and safe for concurrent use.
type Compiler struct {
	graph    *domain.Graph
	explicit map[string]domain.NodeFunc
	funcs    map[string]domain.NodeFunc
	order    []string
	internal map[string]string
	policy   CyclePolicy
	logger   *slog.Logger

	internalNames []string
	externalNames []string
	program       string
}

// New validates the graph, derives the step-function map and eagerly synthesizes
// the program and the node partition.
func New(graph *domain.Graph, opts ...Option) (*Compiler, error) {
	if graph == nil {
		return nil, fmt.Errorf("%w: graph is nil", domain.ErrConfiguration)
	}

	c := &Compiler{
		graph:    graph.Clone(),
		internal: make(map[string]string),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.graph.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	if c.explicit != nil {
		c.funcs = make(map[string]domain.NodeFunc, len(c.explicit))
		for k, v := range c.explicit {
			c.funcs[k] = v
		}
	} else {
		c.funcs = c.graph.Functions()
		if len(c.funcs) == 0 {
			return nil, fmt.Errorf("%w: graph %q has no step functions and none were supplied", domain.ErrConfiguration, c.graph.Name)
		}
	}

	c.order = c.stableOrder()
	c.partition()

	program, err := c.synthesize()
	if err != nil {
		return nil, err
	}
	c.program = program

	c.logger.Debug("Graph compiled",
		"graph", c.graph.Name,
		"internal", len(c.internalNames),
		"external", len(c.externalNames),
		"cycle_policy", c.policy.String())

	return c, nil
}

// stableOrder lists step-function names in graph insertion order, followed by
// names only present in the explicit map, sorted.
func (c *Compiler) stableOrder() []string {
	order := make([]string, 0, len(c.funcs))
	seen := make(map[string]bool, len(c.funcs))
	for _, n := range c.graph.Nodes {
		if _, ok := c.funcs[n.Name]; ok {
			order = append(order, n.Name)
			seen[n.Name] = true
		}
	}
	var extra []string
	for name := range c.funcs {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func (c *Compiler) partition() {
	for _, name := range c.order {
		if _, ok := c.internal[name]; ok {
			c.internalNames = append(c.internalNames, name)
		} else {
			c.externalNames = append(c.externalNames, name)
		}
	}
}

// Program returns the compiled program text.
func (c *Compiler) Program() string {
	return c.program
}

// Internal lists the nodes delegated to the remote planner.
func (c *Compiler) Internal() []string {
	return append([]string(nil), c.internalNames...)
}

// External lists the nodes exposed as local tools.
func (c *Compiler) External() []string {
	return append([]string(nil), c.externalNames...)
}

// Graph returns a copy of the compiled graph.
func (c *Compiler) Graph() *domain.Graph {
	return c.graph.Clone()
}

// InternalTools maps every internal node to the remote tool called in its place.
func (c *Compiler) InternalTools() map[string]string {
	out := make(map[string]string, len(c.internalNames))
	for _, name := range c.internalNames {
		out[name] = c.callName(name)
	}
	return out
}
