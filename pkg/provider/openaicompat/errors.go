package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/denker-ai/denker/pkg/api"
)

// MapHTTPError converts a non-success chat response into a backend error
// carrying the status code and whatever message the body offers.
func MapHTTPError(resp *http.Response) *api.APIError {
	message := ExtractErrorMessage(resp.Body)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return api.NewBackendError(fmt.Sprintf("backend request failed: %d - %s", resp.StatusCode, message))
}

// MapNetworkError wraps a failed request dispatch as a transport error.
func MapNetworkError(err error) *api.APIError {
	return api.NewTransportError(fmt.Sprintf("backend connection error: %v", err))
}

// ExtractErrorMessage tries to parse the response body as a
// ChatErrorResponse and returns the error message if found. Reads are
// capped so a misbehaving backend cannot balloon an error path.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
