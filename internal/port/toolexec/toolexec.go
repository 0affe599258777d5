// Package toolexec defines the tool execution service port (interface).
package toolexec

import "context"

// Descriptor describes a tool exposed by the execution service.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Executor is the port interface to the external MCP-style tool execution
// service.
type Executor interface {
	ListTools(ctx context.Context) ([]Descriptor, error)

	// ExecuteTool runs the named tool and returns its textual result.
	ExecuteTool(ctx context.Context, name string, parameters map[string]any) (string, error)
}
