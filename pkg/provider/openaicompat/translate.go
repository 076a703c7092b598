package openaicompat

import (
	"github.com/denker-ai/denker/pkg/provider"
)

// TranslateRequest converts a provider request into the Chat Completions
// payload. The Chat Completions format links tool results by tool_call_id,
// matching the provider message shape, so the walk is a field-for-field
// mapping with the wire's function envelope added around calls and tools.
func TranslateRequest(req *provider.Request) ChatCompletionRequest {
	out := ChatCompletionRequest{
		Model:         req.Model,
		Messages:      make([]ChatMessage, 0, len(req.Messages)),
		Stream:        true,
		StreamOptions: &ChatStreamOptions{IncludeUsage: true},
	}

	for _, msg := range req.Messages {
		cm := ChatMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, ChatToolCall{
				ID:   call.ID,
				Type: "function",
				Function: ChatFunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, cm)
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, ChatTool{
			Type: "function",
			Function: ChatFunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return out
}
