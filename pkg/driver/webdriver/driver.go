package webdriver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/logger"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
)

// Endpoint defaults.
const (
	DefaultHost = "localhost"
	DefaultPort = "4444"
	DefaultPath = "/wd/hub"
)

// Driver opens sessions on a WebDriver endpoint chosen per session by the
// driver options: "url", or "host", "port" and "path".
type Driver struct {
	// HTTPClient is used for all requests; nil means a client with a
	// generous timeout.
	HTTPClient *http.Client
}

// New creates a driver.
func New() *Driver {
	return &Driver{}
}

// ServerURL builds the endpoint URL from driver options.
func ServerURL(opts map[string]interface{}) (string, error) {
	if u := script.Stringify(opts["url"]); u != "" {
		if _, err := url.Parse(u); err != nil {
			return "", core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid driver url %q", u)).WithCause(err)
		}
		return strings.TrimSuffix(u, "/"), nil
	}
	host := script.Stringify(opts["host"])
	if host == "" {
		host = DefaultHost
	}
	port := script.Stringify(opts["port"])
	if port == "" {
		port = DefaultPort
	}
	path := DefaultPath
	if p, ok := opts["path"]; ok {
		path = script.Stringify(p)
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + host + ":" + port + strings.TrimSuffix(path, "/"), nil
}

// NewSession creates a session with the browser options as alwaysMatch
// capabilities.
func (d *Driver) NewSession(ctx context.Context, opts core.SessionOptions) (core.Session, error) {
	serverURL, err := ServerURL(opts.Driver)
	if err != nil {
		return nil, err
	}
	c := newClient(serverURL, d.HTTPClient)

	caps := opts.Browser
	if caps == nil {
		caps = map[string]interface{}{}
	}
	value, err := c.post(ctx, "/session", map[string]interface{}{
		"capabilities": map[string]interface{}{"alwaysMatch": caps},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m, _ := value.(map[string]interface{})
	id, _ := m["sessionId"].(string)
	if id == "" {
		return nil, fmt.Errorf("no session ID in response")
	}
	logger.Info("webdriver session %s opened on %s for %s", id, serverURL, opts.Name)
	return &Session{client: c, id: id}, nil
}
