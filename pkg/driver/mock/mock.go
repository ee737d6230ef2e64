// Package mock provides an in-memory browser driver for testing without a
// WebDriver server.
package mock

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
)

// Driver is a mock implementation of core.Driver. Every session it opens
// starts from a copy of Config.Page.
type Driver struct {
	// Configuration
	Config Config

	mu       sync.Mutex
	sessions []*Session
}

// Config configures mock driver behavior.
type Config struct {
	// Page is the initial browser state of every new session.
	Page Page
	// FailOnCommand makes the Nth Do call of a session fail (1-indexed). 0 = never fail.
	FailOnCommand int
	// CommandDelay adds artificial delay per command.
	CommandDelay time.Duration
	// SessionError makes NewSession fail.
	SessionError error
	// QuitError makes Quit fail.
	QuitError error
}

// Page is the fake browser state a session operates on.
type Page struct {
	URL      string
	Title    string
	Body     string
	Source   string
	Alert    *string
	Elements map[core.Locator]*Element
	Cookies  []map[string]interface{}
	Windows  []Window
	Scripts  map[string]interface{}
}

// Window is a browser window known to the mock.
type Window struct {
	Handle string
	Title  string
}

// Element is a fake DOM element.
type Element struct {
	ID         string
	Text       string
	Value      string
	Selected   bool
	Hidden     bool
	Attributes map[string]string
	CSS        map[string]string
	Clicks     int
}

// Call records a command issued to a session.
type Call struct {
	Command string
	Args    []interface{}
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	if cfg.Page.Title == "" {
		cfg.Page.Title = "Mock Page"
	}
	if cfg.Page.Body == "" {
		cfg.Page.Body = "Mock Page"
	}
	if len(cfg.Page.Windows) == 0 {
		cfg.Page.Windows = []Window{{Handle: "mock-window-1", Title: cfg.Page.Title}}
	}
	return &Driver{Config: cfg}
}

// NewSession opens a session over a copy of the configured page.
func (d *Driver) NewSession(ctx context.Context, opts core.SessionOptions) (core.Session, error) {
	if d.Config.SessionError != nil {
		return nil, d.Config.SessionError
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Session{
		id:      fmt.Sprintf("mock-session-%d", len(d.sessions)+1),
		Options: opts,
		driver:  d,
		page:    copyPage(d.Config.Page),
		fail:    make(map[string]error),
	}
	d.sessions = append(d.sessions, s)
	return s, nil
}

// Sessions returns every session opened so far.
func (d *Driver) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Session, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// Session is a mock browser session.
type Session struct {
	Options core.SessionOptions

	driver   *Driver
	id       string
	mu       sync.Mutex
	page     Page
	window   int
	calls    []Call
	fail     map[string]error
	implicit time.Duration
	quit     bool
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Fail makes every later call of command return err.
func (s *Session) Fail(command string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[command] = err
}

// Calls returns the commands issued so far.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Page returns a copy of the current page state.
func (s *Session) Page() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPage(s.page)
}

// Closed reports whether Quit was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quit
}

// ImplicitWait returns the last configured implicit wait.
func (s *Session) ImplicitWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.implicit
}

// SetImplicitWait records the implicit wait.
func (s *Session) SetImplicitWait(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.implicit = d
	return nil
}

// FindElement looks the locator up in the page's element table.
func (s *Session) FindElement(ctx context.Context, loc core.Locator) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Command: "findElement", Args: []interface{}{loc}})
	if err := s.check("findElement"); err != nil {
		return "", err
	}
	el, ok := s.page.Elements[loc]
	if !ok {
		return "", fmt.Errorf("no such element: %s", loc)
	}
	return el.ID, nil
}

// Quit closes the session.
func (s *Session) Quit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit {
		return fmt.Errorf("session %s already closed", s.id)
	}
	s.quit = true
	return s.driver.Config.QuitError
}

// Do simulates a named WebDriver command.
func (s *Session) Do(ctx context.Context, command string, args ...interface{}) (interface{}, error) {
	if d := s.driver.Config.CommandDelay; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Command: command, Args: args})
	if n := s.driver.Config.FailOnCommand; n > 0 && s.commandCount() == n {
		return nil, fmt.Errorf("mock failure on command %d (%s)", n, command)
	}
	if err := s.check(command); err != nil {
		return nil, err
	}
	return s.exec(command, args)
}

func (s *Session) check(command string) error {
	if s.quit {
		return fmt.Errorf("invalid session id: %s", s.id)
	}
	return s.fail[command]
}

func (s *Session) commandCount() int {
	n := 0
	for _, c := range s.calls {
		if c.Command != "findElement" {
			n++
		}
	}
	return n
}

func (s *Session) exec(command string, args []interface{}) (interface{}, error) {
	p := &s.page
	switch command {
	case "get":
		p.URL = argString(args, 0)
		return nil, nil
	case "url":
		return p.URL, nil
	case "title":
		return p.Title, nil
	case "source":
		if p.Source != "" {
			return p.Source, nil
		}
		return "<html><body>" + p.Body + "</body></html>", nil
	case "back", "forward", "refresh", "switchToFrame", "switchToParentFrame", "setWindowRect":
		return nil, nil
	case "elementByTagName":
		return "tag-" + argString(args, 0), nil
	case "text":
		id := argString(args, 0)
		if id == "tag-html" || id == "tag-body" {
			return p.Body, nil
		}
		el, err := s.element(id)
		if err != nil {
			return nil, err
		}
		return el.Text, nil
	case "click", "doubleClick", "submit":
		el, err := s.element(argString(args, 0))
		if err != nil {
			return nil, err
		}
		el.Clicks++
		if command == "click" {
			el.Selected = !el.Selected
		}
		return nil, nil
	case "clear":
		el, err := s.element(argString(args, 0))
		if err != nil {
			return nil, err
		}
		el.Value = ""
		return nil, nil
	case "sendKeys":
		el, err := s.element(argString(args, 0))
		if err != nil {
			return nil, err
		}
		el.Value += argString(args, 1)
		return nil, nil
	case "getAttribute", "getProperty", "cssProperty":
		el, err := s.element(argString(args, 0))
		if err != nil {
			return nil, err
		}
		name := argString(args, 1)
		if command == "cssProperty" {
			return el.CSS[name], nil
		}
		if name == "value" {
			return el.Value, nil
		}
		if v, ok := el.Attributes[name]; ok {
			return v, nil
		}
		return nil, nil
	case "isSelected", "isDisplayed":
		el, err := s.element(argString(args, 0))
		if err != nil {
			return nil, err
		}
		if command == "isSelected" {
			return el.Selected, nil
		}
		return !el.Hidden, nil
	case "allCookies":
		out := make([]interface{}, len(p.Cookies))
		for i, c := range p.Cookies {
			out[i] = c
		}
		return out, nil
	case "setCookie":
		c, ok := argAt(args, 0).(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid argument: cookie must be an object")
		}
		p.Cookies = append(removeCookie(p.Cookies, fmt.Sprint(c["name"])), c)
		return nil, nil
	case "deleteCookie":
		p.Cookies = removeCookie(p.Cookies, argString(args, 0))
		return nil, nil
	case "takeScreenshot":
		return base64.StdEncoding.EncodeToString(screenshotPNG), nil
	case "windowHandle":
		return p.Windows[s.window].Handle, nil
	case "windowHandles":
		out := make([]interface{}, len(p.Windows))
		for i, w := range p.Windows {
			out[i] = w.Handle
		}
		return out, nil
	case "switchToWindow":
		handle := argString(args, 0)
		for i, w := range p.Windows {
			if w.Handle == handle || w.Title == handle {
				s.window = i
				p.Title = w.Title
				return nil, nil
			}
		}
		return nil, fmt.Errorf("no such window: %s", handle)
	case "acceptAlert", "dismissAlert", "alertText", "sendAlertText":
		if p.Alert == nil {
			return nil, fmt.Errorf("no such alert")
		}
		switch command {
		case "alertText":
			return *p.Alert, nil
		case "sendAlertText":
			return nil, nil
		}
		p.Alert = nil
		return nil, nil
	case "execute":
		script := argString(args, 0)
		if v, ok := p.Scripts[script]; ok {
			return v, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown command: %s", command)
}

func (s *Session) element(id string) (*Element, error) {
	for _, el := range s.page.Elements {
		if el.ID == id {
			return el, nil
		}
	}
	return nil, fmt.Errorf("stale element reference: %s", id)
}

func removeCookie(cookies []map[string]interface{}, name string) []map[string]interface{} {
	out := cookies[:0:0]
	for _, c := range cookies {
		if fmt.Sprint(c["name"]) != name {
			out = append(out, c)
		}
	}
	return out
}

func argAt(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func argString(args []interface{}, i int) string {
	v := argAt(args, i)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func copyPage(p Page) Page {
	out := p
	if p.Alert != nil {
		a := *p.Alert
		out.Alert = &a
	}
	if p.Elements != nil {
		out.Elements = make(map[core.Locator]*Element, len(p.Elements))
		for k, v := range p.Elements {
			el := *v
			out.Elements[k] = &el
		}
	}
	out.Cookies = make([]map[string]interface{}, 0, len(p.Cookies))
	for _, c := range p.Cookies {
		cc := make(map[string]interface{}, len(c))
		for k, v := range c {
			cc[k] = v
		}
		out.Cookies = append(out.Cookies, cc)
	}
	out.Windows = append([]Window(nil), p.Windows...)
	return out
}

// Minimal valid PNG (1x1 transparent pixel)
var screenshotPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}
