package ollama

import (
	"encoding/json"
	"time"
)

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

// chatMessage is one outbound conversation message. Content is always
// present on the wire, empty for pure tool-dispatch turns. ToolName
// accompanies tool-role result messages.
type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
}

// wireToolCall is an outbound tool invocation on an assistant message.
type wireToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function wireFunction `json:"function"`
}

// wireFunction carries the call arguments in JSON-object form.
type wireFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// wireTool is one entry of the tool catalogue offered to the model.
type wireTool struct {
	Type     string         `json:"type"`
	Function wireToolSchema `json:"function"`
}

type wireToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// chatFrame is one newline-delimited JSON unit of the streaming response.
// Token counts arrive on the final frame only.
type chatFrame struct {
	Model           string       `json:"model,omitempty"`
	CreatedAt       string       `json:"created_at,omitempty"`
	Message         frameMessage `json:"message"`
	Done            bool         `json:"done"`
	Error           string       `json:"error,omitempty"`
	PromptEvalCount int          `json:"prompt_eval_count,omitempty"`
	EvalCount       int          `json:"eval_count,omitempty"`
}

type frameMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls []frameToolCall `json:"tool_calls,omitempty"`
}

// frameToolCall is an inbound tool call. Arguments is kept raw because
// backends deliver either an object or a pre-serialized string.
type frameToolCall struct {
	ID       string        `json:"id,omitempty"`
	Function frameFunction `json:"function"`
}

type frameFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// errorResponse is the JSON body Ollama returns on non-success status.
type errorResponse struct {
	Error string `json:"error"`
}

// tagsResponse is the body of GET /api/tags.
type tagsResponse struct {
	Models []tagModel `json:"models"`
}

type tagModel struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}
