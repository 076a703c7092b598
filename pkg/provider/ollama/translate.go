package ollama

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/provider"
)

// translateRequest converts a provider request into the backend chat
// payload. Tool results are keyed by name on the wire rather than by call
// id, so the walk below carries a call-id index built from earlier
// assistant messages and resolves each tool message against it. An id with
// no recorded call falls back to the raw id, which at least keeps the
// result attributable.
func translateRequest(req *provider.Request) *chatRequest {
	out := &chatRequest{
		Model:    req.Model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
		Stream:   true,
	}

	callNames := make(map[string]string)
	for _, msg := range req.Messages {
		switch msg.Role {
		case api.RoleAssistant:
			cm := chatMessage{Role: "assistant", Content: msg.Content}
			for _, call := range msg.ToolCalls {
				callNames[call.ID] = call.Name
				cm.ToolCalls = append(cm.ToolCalls, wireToolCall{
					ID:   call.ID,
					Type: "function",
					Function: wireFunction{
						Name:      call.Name,
						Arguments: argumentsJSON(call.Arguments),
					},
				})
			}
			out.Messages = append(out.Messages, cm)

		case api.RoleTool:
			name := callNames[msg.ToolCallID]
			if name == "" {
				name = msg.ToolCallID
			}
			out.Messages = append(out.Messages, chatMessage{
				Role:     "tool",
				Content:  msg.Content,
				ToolName: name,
			})

		default:
			out.Messages = append(out.Messages, chatMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		}
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, wireTool{
			Type: "function",
			Function: wireToolSchema{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return out
}

// argumentsJSON renders a canonical arguments string as a JSON value for
// the wire. Valid JSON is embedded as-is; anything else is quoted so the
// payload stays well-formed.
func argumentsJSON(args string) json.RawMessage {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage("{}")
	}
	return quoted
}

// normalizeArguments maps the wire forms of tool-call arguments onto one
// canonical compact JSON string. Backends emit either an object or a
// pre-encoded JSON string; absent or null arguments become "{}".
func normalizeArguments(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "{}"
	}

	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err == nil {
			inner = strings.TrimSpace(inner)
			if inner == "" {
				return "{}"
			}
			return inner
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err == nil {
		return buf.String()
	}
	return string(trimmed)
}
