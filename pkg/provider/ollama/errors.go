package ollama

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/denker-ai/denker/pkg/api"
)

// mapHTTPError converts a non-success chat response into a backend error
// carrying the status code and whatever message the body offers.
func mapHTTPError(resp *http.Response) *api.APIError {
	message := extractErrorMessage(resp.Body)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return api.NewBackendError(fmt.Sprintf("Ollama request failed: %d - %s", resp.StatusCode, message))
}

// extractErrorMessage pulls the error string out of an {"error": "..."}
// body. Reads are capped so a misbehaving backend cannot balloon an error
// path.
func extractErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return string(data)
}

// mapNetworkError wraps a failed request dispatch as a transport error.
func mapNetworkError(err error) *api.APIError {
	return api.NewTransportError(fmt.Sprintf("Ollama connection error: %v", err))
}
