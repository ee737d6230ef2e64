package jsengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"
)

const defaultHTTPTimeout = 30 * time.Second

// httpModule returns the object behind require("http"): get, post, put,
// delete and request(method, url, options). Requests are synchronous and
// return {status, ok, body, headers, json}.
func (e *Engine) httpModule() *goja.Object {
	obj := e.runtime.NewObject()
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		method := method
		obj.Set(strings.ToLower(method), func(call goja.FunctionCall) goja.Value {
			return e.doHTTPRequest(method, call.Argument(0), call.Argument(1))
		})
	}
	obj.Set("request", func(call goja.FunctionCall) goja.Value {
		return e.doHTTPRequest(strings.ToUpper(call.Argument(0).String()), call.Argument(1), call.Argument(2))
	})
	return obj
}

// httpOptions are the optional request settings: body (string or object,
// objects are sent as JSON), headers and timeout in milliseconds.
type httpOptions struct {
	body        io.Reader
	contentType string
	headers     map[string]string
	timeout     time.Duration
}

func parseHTTPOptions(v goja.Value) httpOptions {
	opts := httpOptions{headers: map[string]string{}, timeout: defaultHTTPTimeout}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return opts
	}
	m, ok := v.Export().(map[string]interface{})
	if !ok {
		return opts
	}
	switch b := m["body"].(type) {
	case nil:
	case string:
		opts.body = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		opts.body = bytes.NewReader(data)
		opts.contentType = "application/json"
	}
	if h, ok := m["headers"].(map[string]interface{}); ok {
		for k, v := range h {
			opts.headers[k] = fmt.Sprint(v)
		}
	}
	switch t := m["timeout"].(type) {
	case int64:
		opts.timeout = time.Duration(t) * time.Millisecond
	case float64:
		opts.timeout = time.Duration(t * float64(time.Millisecond))
	}
	return opts
}

func (e *Engine) doHTTPRequest(method string, urlVal, optsVal goja.Value) goja.Value {
	if urlVal == nil || goja.IsUndefined(urlVal) {
		panic(e.runtime.NewTypeError(fmt.Sprintf("http.%s requires url", strings.ToLower(method))))
	}
	opts := parseHTTPOptions(optsVal)

	req, err := http.NewRequest(method, urlVal.String(), opts.body)
	if err != nil {
		panic(e.runtime.NewGoError(fmt.Errorf("create request: %w", err)))
	}
	if opts.contentType != "" {
		req.Header.Set("Content-Type", opts.contentType)
	}
	for k, v := range opts.headers {
		req.Header.Set(k, v)
	}

	resp, err := (&http.Client{Timeout: opts.timeout}).Do(req)
	if err != nil {
		panic(e.runtime.NewGoError(fmt.Errorf("HTTP request failed: %w", err)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(e.runtime.NewGoError(fmt.Errorf("read response: %w", err)))
	}

	headers := make(map[string]interface{}, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	res := e.runtime.NewObject()
	res.Set("status", resp.StatusCode)
	res.Set("ok", resp.StatusCode >= 200 && resp.StatusCode < 300)
	res.Set("body", string(body))
	res.Set("headers", headers)

	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		res.Set("json", parsed)
	} else {
		res.Set("json", goja.Null())
	}
	return res
}
