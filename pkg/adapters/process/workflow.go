package process

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/dsl"
	"github.com/aretw0/lattice/pkg/registry"
)

// WorkflowFile is the on-disk description of a graph whose nodes are commands.
//
//	name: triage
//	entry: classify
//	tools:
//	  - name: classify
//	    command: ./classify.sh
//	nodes:
//	  - name: classify
//	    branch: {name: route, tool: router, targets: [escalate, archive]}
//	  - name: archive
//	    internal: archive_mail
//	    next: end
type WorkflowFile struct {
	Name  string          `yaml:"name" json:"name"`
	Entry string          `yaml:"entry" json:"entry"`
	Tools []ProcessConfig `yaml:"tools" json:"tools"`
	Nodes []NodeSpec      `yaml:"nodes" json:"nodes"`
}

// NodeSpec describes one node of a workflow file.
type NodeSpec struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	// Tool is the registered command; defaults to the node name.
	Tool string `yaml:"tool" json:"tool"`
	// Internal makes the node run remotely under the given tool name.
	Internal string      `yaml:"internal" json:"internal"`
	Next     StringList  `yaml:"next" json:"next"`
	Branch   *BranchSpec `yaml:"branch" json:"branch"`
}

// BranchSpec describes the conditional routing of a node.
type BranchSpec struct {
	Name    string   `yaml:"name" json:"name"`
	Tool    string   `yaml:"tool" json:"tool"`
	Targets []string `yaml:"targets" json:"targets"`
}

// Workflow is a loaded workflow file, ready for compilation.
type Workflow struct {
	Graph *domain.Graph
	// Internal maps internal nodes to remote tool names.
	Internal map[string]string
	// Processes are the commands declared by the file.
	Processes map[string]ProcessConfig
	// Functions holds the node functions in file order.
	Functions *registry.Registry
}

// LoadWorkflow reads a YAML or JSON workflow file and builds its graph. Commands
// run with the directory of the file as working directory. extra tools, e.g.
// from a shared tools.yaml, are available to the nodes unless the file
// redeclares them.
func LoadWorkflow(path string, extra map[string]ProcessConfig) (*Workflow, error) {
	var wf WorkflowFile
	found, err := decodeFile(path, &wf)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("workflow file not found: %s", path)
	}
	if wf.Name == "" {
		wf.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	procs := make(map[string]ProcessConfig, len(extra)+len(wf.Tools))
	for k, v := range extra {
		procs[k] = v
	}
	for k, v := range indexTools(wf.Tools) {
		procs[k] = v
	}
	runner := NewRunner(WithRegistry(procs), WithBaseDir(filepath.Dir(path)))

	return wf.build(runner, procs)
}

func (wf WorkflowFile) build(runner *Runner, procs map[string]ProcessConfig) (*Workflow, error) {
	b := dsl.New(wf.Name)
	if wf.Entry != "" {
		b.Entry(wf.Entry)
	}

	internal := make(map[string]string)
	funcs := registry.NewRegistry()
	for _, spec := range wf.Nodes {
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: workflow %q has a node without name", domain.ErrInvalidGraph, wf.Name)
		}

		tool := spec.Tool
		if tool == "" {
			tool = spec.Name
		}

		var fn domain.NodeFunc
		if spec.Internal != "" {
			internal[spec.Name] = spec.Internal
			fn = remoteOnly(spec.Name)
		} else {
			var err error
			if fn, err = runner.NodeFunc(spec.Name, tool); err != nil {
				return nil, fmt.Errorf("node %q: %w", spec.Name, err)
			}
		}

		funcs.Register(spec.Name, fn)
		nb := b.Add(spec.Name, fn)
		if spec.Description != "" {
			nb.Describe(spec.Description)
		} else if p, ok := procs[tool]; ok && p.Description != "" {
			nb.Describe(p.Description)
		}
		for _, next := range spec.Next {
			nb.Go(target(next))
		}
		if br := spec.Branch; br != nil {
			decide, err := runner.BranchFunc(spec.Name, br.Tool)
			if err != nil {
				return nil, fmt.Errorf("branch of %q: %w", spec.Name, err)
			}
			targets := make([]string, 0, len(br.Targets))
			for _, t := range br.Targets {
				targets = append(targets, target(t))
			}
			name := br.Name
			if name == "" {
				name = "route_" + spec.Name
			}
			nb.Branch(name, decide, targets...)
		}
	}

	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &Workflow{Graph: g, Internal: internal, Processes: procs, Functions: funcs}, nil
}

// target accepts "end" and "start" as aliases of the pseudo-nodes.
func target(name string) string {
	switch strings.ToLower(name) {
	case "end":
		return domain.End
	case "start":
		return domain.Start
	default:
		return name
	}
}

// remoteOnly stands in for nodes executed by the orchestrator; it is never
// called during a well-formed run.
func remoteOnly(node string) domain.NodeFunc {
	return func(_ context.Context, _ domain.State) (domain.State, error) {
		return nil, fmt.Errorf("%w: node %q is executed remotely", domain.ErrDispatch, node)
	}
}

// StringList decodes either a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*l = StringList{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*l = list
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = StringList{one}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}
