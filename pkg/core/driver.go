// Package core provides the execution model types shared by the interpreter,
// the step library and the browser-automation drivers.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Driver opens automation sessions against a browser-automation endpoint.
// Implementations: W3C WebDriver over HTTP, in-memory mock.
// The TestRun handles step logic; a Session just executes individual commands.
type Driver interface {
	// NewSession starts a browser session with the given options.
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// Session is a live browser session owned by exactly one TestRun at a time.
type Session interface {
	// ID returns the driver-assigned session identifier.
	ID() string

	// SetImplicitWait configures how long element lookups wait before failing.
	SetImplicitWait(ctx context.Context, d time.Duration) error

	// FindElement locates a single element and returns its driver reference.
	FindElement(ctx context.Context, loc Locator) (string, error)

	// Do invokes a named command with positional arguments.
	Do(ctx context.Context, command string, args ...interface{}) (interface{}, error)

	// Quit tears the session down.
	Quit(ctx context.Context) error
}

// NameCapability is the vendor-prefixed capability carrying the run name.
const NameCapability = "se:name"

// SessionOptions carries the option maps a session is created with.
type SessionOptions struct {
	Name    string                 // Run name, forwarded as the se:name capability
	Browser map[string]interface{} // Capabilities (browserName, version, ...)
	Driver  map[string]interface{} // Endpoint settings (url, host, port, path)
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(ctx context.Context, opts SessionOptions) (Session, error)

// NewSession calls f.
func (f DriverFunc) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	return f(ctx, opts)
}

// LocatorStrategy is a W3C element location strategy.
type LocatorStrategy string

// Supported strategies.
const (
	ByID       LocatorStrategy = "id"
	ByName     LocatorStrategy = "name"
	ByLinkText LocatorStrategy = "link text"
	ByCSS      LocatorStrategy = "css selector"
	ByXPath    LocatorStrategy = "xpath"
)

// Locator describes how to find an element.
type Locator struct {
	Type  LocatorStrategy `json:"type"`
	Value string          `json:"value"`
}

// String returns a human-readable form, e.g. `css selector "#login"`.
func (l Locator) String() string {
	return fmt.Sprintf("%s %q", l.Type, l.Value)
}

// ParseLocatorStrategy normalizes a strategy name. Both the W3C spelling
// ("link text") and the hyphenated spelling ("link-text") are accepted.
func ParseLocatorStrategy(s string) (LocatorStrategy, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", " ")) {
	case "id":
		return ByID, nil
	case "name":
		return ByName, nil
	case "link text":
		return ByLinkText, nil
	case "css selector", "css":
		return ByCSS, nil
	case "xpath":
		return ByXPath, nil
	}
	return "", ErrInvalidLocator.WithMessage(fmt.Sprintf("unknown locator type %q", s))
}
