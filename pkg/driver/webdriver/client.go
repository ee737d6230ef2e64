// Package webdriver implements core.Driver against a W3C WebDriver
// endpoint such as a Selenium server or a browser driver.
package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Error is an error reported by the remote end.
type Error struct {
	Status  int    // HTTP status
	Code    string // W3C error code, e.g. "no such element"
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// client handles HTTP communication with the remote end.
type client struct {
	serverURL string
	http      *http.Client
}

func newClient(serverURL string, hc *http.Client) *client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	return &client{serverURL: strings.TrimSuffix(serverURL, "/"), http: hc}
}

func (c *client) get(ctx context.Context, path string) (interface{}, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

func (c *client) post(ctx context.Context, path string, body interface{}) (interface{}, error) {
	if body == nil {
		body = map[string]interface{}{}
	}
	return c.request(ctx, http.MethodPost, path, body)
}

func (c *client) delete(ctx context.Context, path string) (interface{}, error) {
	return c.request(ctx, http.MethodDelete, path, nil)
}

// request sends a command and returns the "value" member of the response.
func (c *client) request(ctx context.Context, method, path string, body interface{}) (interface{}, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &Error{Status: resp.StatusCode, Code: "unknown error", Message: strings.TrimSpace(string(respBody))}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			msg, _ := errValue["message"].(string)
			return nil, &Error{Status: resp.StatusCode, Code: errType, Message: msg}
		}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Status: resp.StatusCode, Code: "unknown error", Message: http.StatusText(resp.StatusCode)}
	}
	return result["value"], nil
}

func extractElementID(value interface{}) string {
	m, ok := value.(map[string]interface{})
	if !ok {
		return ""
	}
	// W3C format
	if id, ok := m[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := m["ELEMENT"].(string); ok {
		return id
	}
	return ""
}

func elementRef(id string) map[string]interface{} {
	return map[string]interface{}{w3cElementKey: id}
}
