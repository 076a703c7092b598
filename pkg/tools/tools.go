// Package tools defines the tool capability offered to the agent loop and
// a registry that validates and dispatches calls to registered tools.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is one callable capability. Implementations must be safe for
// concurrent use; the registry may dispatch the same tool from multiple
// loops at once.
type Tool interface {
	// Name returns the unique tool name offered to the model.
	Name() string

	// Description returns the human-readable purpose shown to the model.
	Description() string

	// Schema returns the JSON Schema of the tool's arguments object.
	Schema() json.RawMessage

	// Execute runs the tool with its arguments as a canonical JSON string
	// and returns the result text.
	Execute(ctx context.Context, arguments string) (string, error)
}
