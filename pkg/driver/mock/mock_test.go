package mock

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
)

var buttonLoc = core.Locator{Type: core.ByID, Value: "go"}

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	d := New(cfg)
	s, err := d.NewSession(context.Background(), core.SessionOptions{Name: "t"})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s.(*Session)
}

func TestNew_Defaults(t *testing.T) {
	d := New(Config{})
	if d.Config.Page.Title != "Mock Page" {
		t.Errorf("Title = %q, want Mock Page", d.Config.Page.Title)
	}
	if len(d.Config.Page.Windows) != 1 {
		t.Errorf("Windows = %d, want 1", len(d.Config.Page.Windows))
	}
}

func TestSession_NavigationAndText(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, Config{Page: Page{Body: "Hello world"}})

	if _, err := s.Do(ctx, "get", "http://example.com/"); err != nil {
		t.Fatalf("get error = %v", err)
	}
	url, _ := s.Do(ctx, "url")
	if url != "http://example.com/" {
		t.Errorf("url = %v", url)
	}

	html, _ := s.Do(ctx, "elementByTagName", "html")
	text, err := s.Do(ctx, "text", html)
	if err != nil || text != "Hello world" {
		t.Errorf("text = %v, %v", text, err)
	}
}

func TestSession_ElementCommands(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, Config{Page: Page{Elements: map[core.Locator]*Element{
		buttonLoc: {ID: "el-1", Text: "Go", Attributes: map[string]string{"class": "btn"}},
	}}})

	id, err := s.FindElement(ctx, buttonLoc)
	if err != nil || id != "el-1" {
		t.Fatalf("FindElement() = %q, %v", id, err)
	}
	if _, err := s.FindElement(ctx, core.Locator{Type: core.ByID, Value: "nope"}); err == nil {
		t.Error("FindElement(nope) should fail")
	}

	if _, err := s.Do(ctx, "sendKeys", id, "abc"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Do(ctx, "getProperty", id, "value"); v != "abc" {
		t.Errorf("value = %v, want abc", v)
	}
	if v, _ := s.Do(ctx, "getAttribute", id, "class"); v != "btn" {
		t.Errorf("class = %v, want btn", v)
	}
	if _, err := s.Do(ctx, "click", id); err != nil {
		t.Fatal(err)
	}
	if sel, _ := s.Do(ctx, "isSelected", id); sel != true {
		t.Errorf("isSelected = %v after click", sel)
	}

	// Sessions never mutate the driver's template page.
	if s.driver.Config.Page.Elements[buttonLoc].Clicks != 0 {
		t.Error("template element was mutated")
	}
	if s.Page().Elements[buttonLoc].Clicks != 1 {
		t.Error("session element click not recorded")
	}
}

func TestSession_Cookies(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, Config{})

	s.Do(ctx, "setCookie", map[string]interface{}{"name": "a", "value": "1"})
	s.Do(ctx, "setCookie", map[string]interface{}{"name": "a", "value": "2"})
	all, _ := s.Do(ctx, "allCookies")
	if n := len(all.([]interface{})); n != 1 {
		t.Fatalf("cookies = %d, want 1", n)
	}
	s.Do(ctx, "deleteCookie", "a")
	all, _ = s.Do(ctx, "allCookies")
	if n := len(all.([]interface{})); n != 0 {
		t.Errorf("cookies = %d after delete, want 0", n)
	}
}

func TestSession_Alerts(t *testing.T) {
	ctx := context.Background()
	msg := "Are you sure?"
	s := newTestSession(t, Config{Page: Page{Alert: &msg}})

	text, err := s.Do(ctx, "alertText")
	if err != nil || text != msg {
		t.Fatalf("alertText = %v, %v", text, err)
	}
	if _, err := s.Do(ctx, "acceptAlert"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Do(ctx, "acceptAlert"); err == nil {
		t.Error("second acceptAlert should fail")
	}
}

func TestSession_Screenshot(t *testing.T) {
	s := newTestSession(t, Config{})
	v, err := s.Do(context.Background(), "takeScreenshot")
	if err != nil {
		t.Fatal(err)
	}
	data, err := base64.StdEncoding.DecodeString(v.(string))
	if err != nil {
		t.Fatal(err)
	}
	if string(data[1:4]) != "PNG" {
		t.Errorf("screenshot is not a PNG")
	}
}

func TestSession_FailureInjection(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, Config{FailOnCommand: 2})

	if _, err := s.Do(ctx, "title"); err != nil {
		t.Fatalf("first command error = %v", err)
	}
	if _, err := s.Do(ctx, "title"); err == nil {
		t.Error("second command should fail")
	}

	boom := errors.New("boom")
	s.Fail("url", boom)
	if _, err := s.Do(ctx, "url"); !errors.Is(err, boom) {
		t.Errorf("url error = %v, want boom", err)
	}

	if _, err := s.Do(ctx, "frobnicate"); err == nil {
		t.Error("unknown command should fail")
	}
}

func TestSession_Quit(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, Config{})

	if err := s.Quit(ctx); err != nil {
		t.Fatalf("Quit() error = %v", err)
	}
	if !s.Closed() {
		t.Error("Closed() = false after Quit")
	}
	if _, err := s.Do(ctx, "title"); err == nil {
		t.Error("commands after Quit should fail")
	}
	if err := s.Quit(ctx); err == nil {
		t.Error("second Quit should fail")
	}
}

func TestDriver_SessionError(t *testing.T) {
	d := New(Config{SessionError: errors.New("no browser")})
	if _, err := d.NewSession(context.Background(), core.SessionOptions{}); err == nil {
		t.Error("NewSession() should fail")
	}
	if len(d.Sessions()) != 0 {
		t.Error("failed session must not be recorded")
	}
}
