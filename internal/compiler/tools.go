package compiler

import (
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/aretw0/lattice/pkg/domain"
)

// ChatTool is a tool definition in the chat-completions dialect.
type ChatTool struct {
	Type     string       `json:"type"`
	Function ChatFunction `json:"function"`
}

// ChatFunction is the function part of a ChatTool.
type ChatFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// MessagesTool is a tool definition in the messages dialect.
type MessagesTool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// StateParameters is the argument schema shared by every external tool:
// a single required, open-ended "state" object.
func StateParameters() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set(domain.KeyState, &jsonschema.Schema{
		Type:        "object",
		Description: "Current state dict",
	})
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   []string{domain.KeyState},
	}
}

// ToolSchemas describes every external node as a tool, in stable order.
func (c *Compiler) ToolSchemas() []domain.ToolSchema {
	schemas := make([]domain.ToolSchema, 0, len(c.externalNames))
	for _, name := range c.externalNames {
		schemas = append(schemas, domain.ToolSchema{
			Name:        name,
			Description: c.describe(name),
			Parameters:  StateParameters(),
		})
	}
	return schemas
}

// Tools renders the tool schemas in the wire shape of the given dialect.
func (c *Compiler) Tools(d domain.Dialect) []any {
	schemas := c.ToolSchemas()
	out := make([]any, 0, len(schemas))
	for _, s := range schemas {
		if d == domain.DialectMessages {
			out = append(out, MessagesTool{
				Name:        s.Name,
				Description: s.Description,
				InputSchema: s.Parameters,
			})
			continue
		}
		out = append(out, ChatTool{
			Type: "function",
			Function: ChatFunction{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return out
}

func (c *Compiler) describe(name string) string {
	if n, ok := c.graph.Node(name); ok && n.Description != "" {
		return n.Description
	}
	return fmt.Sprintf("Execute node: %s", name)
}
