package nlphttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// envelope is the engine's response wrapper.
type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	ErrorCode string          `json:"error_code"`
}

// EngineError is a response the engine delivered with success=false.
type EngineError struct {
	Operation string
	Code      string
	Message   string
}

func (e *EngineError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("nlp %s failed: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("nlp %s failed (%s): %s", e.Operation, e.Code, e.Message)
}

func (e *EngineError) UserMessage() string {
	return e.Message
}

func (c *Client) postEnvelope(ctx context.Context, path string, payload any, operation string) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nlp %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, newHTTPStatusError(operation, resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}
	if !env.Success {
		message := strings.TrimSpace(env.Error)
		if message == "" {
			message = strings.TrimSpace(env.Message)
		}
		if message == "" {
			message = "unknown error"
		}
		return nil, &EngineError{Operation: operation, Code: env.ErrorCode, Message: message}
	}
	return env.Data, nil
}

func (c *Client) getStatus(ctx context.Context, path, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nlp %s request: %w", operation, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return newHTTPStatusError(operation, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func newHTTPStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	statusErr := &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
	// Error envelopes arrive with 4xx/5xx too; prefer their message.
	var env envelope
	if json.Unmarshal(body, &env) == nil && strings.TrimSpace(env.Error) != "" {
		statusErr.Body = strings.TrimSpace(env.Error)
		statusErr.Code = env.ErrorCode
	}
	return statusErr
}
