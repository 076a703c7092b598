package integration

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/denker-ai/denker/pkg/api"
)

func TestInvalidJSON(t *testing.T) {
	body := bytes.NewReader([]byte(`{invalid json`))
	resp, err := http.Post(
		testEnv.BaseURL()+"/api/chat",
		"application/json",
		body,
	)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		body := readBody(t, resp)
		t.Errorf("expected 400, got %d: %s", resp.StatusCode, body)
	}

	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)

	if errResp.Error == nil {
		t.Fatal("error object is nil")
	}
	if errResp.Error.Type != api.ErrorTypeValidation {
		t.Errorf("error.type = %q, want %q", errResp.Error.Type, api.ErrorTypeValidation)
	}
}

func TestEmptyMessage(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/api/chat", api.ChatRequest{Message: ""})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		body := readBody(t, resp)
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, body)
	}

	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)

	if errResp.Error == nil {
		t.Fatal("error object is nil")
	}
	if errResp.Error.Type != api.ErrorTypeValidation {
		t.Errorf("error.type = %q, want %q", errResp.Error.Type, api.ErrorTypeValidation)
	}
	if errResp.Error.Param != "message" {
		t.Errorf("error.param = %q, want %q", errResp.Error.Param, "message")
	}
	if errResp.Error.Message != "message is required" {
		t.Errorf("error.message = %q, want %q", errResp.Error.Message, "message is required")
	}
}

func TestInvalidConversationIDInChat(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/api/chat", api.ChatRequest{
		ConversationID: "not-a-valid-id",
		Message:        "Hello",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		body := readBody(t, resp)
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, body)
	}

	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)

	if errResp.Error == nil {
		t.Fatal("error object is nil")
	}
	if errResp.Error.Param != "conversation_id" {
		t.Errorf("error.param = %q, want %q", errResp.Error.Param, "conversation_id")
	}
}

func TestGetConversationMalformedID(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/api/conversations/not-a-valid-id")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		body := readBody(t, resp)
		t.Errorf("expected 400, got %d: %s", resp.StatusCode, body)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	// Valid format but nonexistent ID.
	resp := getURL(t, testEnv.BaseURL()+"/api/conversations/conv_aaaaaaaaaaaaaaaaaaaaaaaa")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		body := readBody(t, resp)
		t.Errorf("expected 404, got %d: %s", resp.StatusCode, body)
	}

	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)

	if errResp.Error == nil {
		t.Fatal("error object is nil")
	}
	if errResp.Error.Type != api.ErrorTypeNotFound {
		t.Errorf("error.type = %q, want %q", errResp.Error.Type, api.ErrorTypeNotFound)
	}
}

func TestDeleteConversationNotFound(t *testing.T) {
	resp := deleteURL(t, testEnv.BaseURL()+"/api/conversations/conv_bbbbbbbbbbbbbbbbbbbbbbbb")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		body := readBody(t, resp)
		t.Errorf("expected 404, got %d: %s", resp.StatusCode, body)
	}
}

func TestUnsupportedContentType(t *testing.T) {
	body := bytes.NewReader([]byte(`message=hello`))
	resp, err := http.Post(
		testEnv.BaseURL()+"/api/chat",
		"application/x-www-form-urlencoded",
		body,
	)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnsupportedMediaType {
		body := readBody(t, resp)
		t.Errorf("expected 415, got %d: %s", resp.StatusCode, body)
	}
}

func TestErrorResponseFormat(t *testing.T) {
	// Any error response should follow the ErrorResponse schema.
	resp := getURL(t, testEnv.BaseURL()+"/api/conversations/not-valid")
	defer resp.Body.Close()

	var raw map[string]any
	decodeJSON(t, resp, &raw)

	errObj, ok := raw["error"]
	if !ok {
		t.Fatal("response missing 'error' key")
	}

	errMap, ok := errObj.(map[string]any)
	if !ok {
		t.Fatal("'error' is not an object")
	}

	if _, ok := errMap["type"]; !ok {
		t.Error("error object missing 'type'")
	}
	if _, ok := errMap["message"]; !ok {
		t.Error("error object missing 'message'")
	}
}
