package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// HTTPClient is the minimal HTTP client surface, satisfied by
// *http.Client and by test doubles.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// NewHTTPClient creates the default HTTP client for API calls.
func NewHTTPClient() HTTPClient {
	return &http.Client{
		Timeout: 60 * time.Second,
	}
}

// executor builds, sends and classifies exactly one HTTP request. It
// never touches token storage; callers decide which token to attach.
type executor struct {
	baseURL    string
	httpClient HTTPClient
	logger     zerolog.Logger
}

// send performs one request. A non-empty token is attached as a bearer
// header; out receives the decoded 2xx payload and may be nil for
// responses without a body. Every failure is returned as *Error.
func (x *executor) send(ctx context.Context, ep Endpoint, token string, body, out any) error {
	requestID := uuid.NewString()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindClientError, Message: "failed to encode request body", RequestID: requestID, Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, ep.URL(x.baseURL), reqBody)
	if err != nil {
		return &Error{Kind: KindClientError, Message: "failed to create request", RequestID: requestID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", bearerHeader(token))
	}
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := x.httpClient.Do(req)
	if err != nil {
		// Connectivity, timeout or cancellation: a transport problem is
		// never an auth problem
		return &Error{Kind: KindNetworkFailure, Message: "request failed", RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetworkFailure, Status: resp.StatusCode, Message: "failed to read response body", RequestID: requestID, Err: err}
	}

	x.logger.Debug().
		Str("method", ep.Method).
		Str("path", ep.Path).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", requestID).
		Msg("API request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyStatus(resp.StatusCode, respBody, requestID)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindDecodeFailure, Status: resp.StatusCode, Message: "failed to decode response body", RequestID: requestID, Err: err}
	}
	return nil
}

// classifyStatus maps a non-2xx response to the error taxonomy.
func classifyStatus(status int, body []byte, requestID string) *Error {
	e := &Error{
		Status:    status,
		Message:   errorMessage(body, http.StatusText(status)),
		RequestID: requestID,
	}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status >= 400 && status < 500:
		e.Kind = KindClientError
	default:
		e.Kind = KindServerError
	}
	return e
}

// errorMessage pulls a human-readable message out of an error body,
// trying the error.message envelope first, then a bare message field,
// then the raw body.
func errorMessage(body []byte, fallback string) string {
	if val := gjson.GetBytes(body, "error.message"); val.Exists() {
		return val.String()
	}
	if val := gjson.GetBytes(body, "message"); val.Exists() {
		return val.String()
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" || len(msg) > 300 {
		return fallback
	}
	return msg
}

// bearerHeader normalizes a stored token to avoid double "Bearer ".
func bearerHeader(token string) string {
	t := strings.TrimSpace(token)
	if len(t) >= 7 && strings.EqualFold(t[:7], "Bearer ") {
		t = strings.TrimSpace(t[7:])
	}
	return "Bearer " + t
}
