package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"hookrelay/internal"
)

const noResponseBody = "no response body"

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto the HTTP surface. Caller
// mistakes (bad payloads, unmapped repositories) are 400s; operator
// mistakes and upstream failures are 500s. Stack traces are attached only
// when diagnostics mode is on, so the public endpoint never leaks
// internals by default.
func writeError(w http.ResponseWriter, err error, diagnostics bool) {
	status, body := errorBody(err)
	if diagnostics {
		body["stack"] = string(debug.Stack())
	}
	writeJSON(w, status, body)
}

func errorBody(err error) (int, map[string]interface{}) {
	var badRequest *internal.BadRequestError
	if errors.As(err, &badRequest) {
		return http.StatusBadRequest, map[string]interface{}{
			"error": badRequest.Message,
		}
	}

	var notConfigured *internal.NotConfiguredError
	if errors.As(err, &notConfigured) {
		return http.StatusBadRequest, map[string]interface{}{
			"error":              notConfigured.Error(),
			"known_repositories": notConfigured.Known,
		}
	}

	var configuration *internal.ConfigurationError
	if errors.As(err, &configuration) {
		return http.StatusInternalServerError, map[string]interface{}{
			"error": configuration.Message,
		}
	}

	var upstream *internal.UpstreamError
	if errors.As(err, &upstream) {
		body := map[string]interface{}{
			"error": upstream.Op,
		}
		if upstream.Status != 0 {
			body["status"] = upstream.Status
		}
		body["details"] = upstreamDetails(upstream)
		return http.StatusInternalServerError, body
	}

	return http.StatusInternalServerError, map[string]interface{}{
		"error": "internal error",
	}
}

// upstreamDetails shapes the upstream response body for the error
// response: structured JSON when it parses, raw text when it doesn't,
// a fixed placeholder when there is nothing at all.
func upstreamDetails(err *internal.UpstreamError) interface{} {
	if err.Details != "" {
		var structured interface{}
		if jsonErr := json.Unmarshal([]byte(err.Details), &structured); jsonErr == nil {
			return structured
		}
		return err.Details
	}
	if err.Err != nil {
		return err.Err.Error()
	}
	return noResponseBody
}
