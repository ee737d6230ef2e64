package webdriver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
)

// Session is a live WebDriver session.
type Session struct {
	client *client
	id     string
}

// ID returns the remote session ID.
func (s *Session) ID() string { return s.id }

func (s *Session) sessionPath() string {
	return "/session/" + s.id
}

func (s *Session) elementPath(elementID string) string {
	return s.sessionPath() + "/element/" + url.PathEscape(elementID)
}

// SetImplicitWait sets the implicit wait timeout.
func (s *Session) SetImplicitWait(ctx context.Context, d time.Duration) error {
	_, err := s.client.post(ctx, s.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": d.Milliseconds(),
	})
	return err
}

// FindElement finds a single element.
func (s *Session) FindElement(ctx context.Context, loc core.Locator) (string, error) {
	using, value := w3cLocator(loc)
	return s.findElement(ctx, using, value)
}

// w3cLocator maps the id and name strategies, which W3C endpoints do not
// support, to CSS attribute selectors.
func w3cLocator(loc core.Locator) (string, string) {
	switch loc.Type {
	case core.ByID, core.ByName:
		return string(core.ByCSS), fmt.Sprintf(`[%s="%s"]`, loc.Type, cssEscaper.Replace(loc.Value))
	}
	return string(loc.Type), loc.Value
}

var cssEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func (s *Session) findElement(ctx context.Context, using, value string) (string, error) {
	v, err := s.client.post(ctx, s.sessionPath()+"/element", map[string]interface{}{
		"using": using,
		"value": value,
	})
	if err != nil {
		return "", err
	}
	id := extractElementID(v)
	if id == "" {
		return "", &Error{Code: "no such element", Message: fmt.Sprintf("%s %q", using, value)}
	}
	return id, nil
}

// Quit deletes the session.
func (s *Session) Quit(ctx context.Context) error {
	_, err := s.client.delete(ctx, s.sessionPath())
	return err
}

// Do runs a named command. Element arguments are element IDs as returned
// by FindElement or elementByTagName.
func (s *Session) Do(ctx context.Context, command string, args ...interface{}) (interface{}, error) {
	sp := s.sessionPath()
	c := s.client
	switch command {
	// Navigation
	case "get":
		return c.post(ctx, sp+"/url", map[string]interface{}{"url": arg(args, 0)})
	case "url":
		return c.get(ctx, sp+"/url")
	case "title":
		return c.get(ctx, sp+"/title")
	case "source":
		return c.get(ctx, sp+"/source")
	case "back", "forward", "refresh":
		return c.post(ctx, sp+"/"+command, nil)

	// Elements
	case "elementByTagName":
		return s.findElement(ctx, "tag name", arg(args, 0))
	case "text":
		return c.get(ctx, s.elementPath(arg(args, 0))+"/text")
	case "click", "clear":
		return c.post(ctx, s.elementPath(arg(args, 0))+"/"+command, nil)
	case "doubleClick":
		return nil, s.doubleClick(ctx, arg(args, 0))
	case "submit":
		return c.post(ctx, sp+"/execute/sync", map[string]interface{}{
			"script": "var f = arguments[0].form || arguments[0]; f.submit();",
			"args":   []interface{}{elementRef(arg(args, 0))},
		})
	case "sendKeys":
		return c.post(ctx, s.elementPath(arg(args, 0))+"/value", map[string]interface{}{"text": arg(args, 1)})
	case "getAttribute":
		return c.get(ctx, s.elementPath(arg(args, 0))+"/attribute/"+url.PathEscape(arg(args, 1)))
	case "getProperty":
		return c.get(ctx, s.elementPath(arg(args, 0))+"/property/"+url.PathEscape(arg(args, 1)))
	case "cssProperty":
		return c.get(ctx, s.elementPath(arg(args, 0))+"/css/"+url.PathEscape(arg(args, 1)))
	case "isSelected":
		return c.get(ctx, s.elementPath(arg(args, 0))+"/selected")
	case "isDisplayed":
		return c.get(ctx, s.elementPath(arg(args, 0))+"/displayed")

	// Cookies
	case "allCookies":
		return c.get(ctx, sp+"/cookie")
	case "setCookie":
		return c.post(ctx, sp+"/cookie", map[string]interface{}{"cookie": argAt(args, 0)})
	case "deleteCookie":
		return c.delete(ctx, sp+"/cookie/"+url.PathEscape(arg(args, 0)))

	// Windows and frames
	case "takeScreenshot":
		return c.get(ctx, sp+"/screenshot")
	case "windowHandle":
		return c.get(ctx, sp+"/window")
	case "windowHandles":
		return c.get(ctx, sp+"/window/handles")
	case "switchToWindow":
		return c.post(ctx, sp+"/window", map[string]interface{}{"handle": arg(args, 0)})
	case "switchToFrame":
		return s.switchToFrame(ctx, argAt(args, 0))
	case "switchToParentFrame":
		return c.post(ctx, sp+"/frame/parent", nil)
	case "setWindowRect":
		return c.post(ctx, sp+"/window/rect", map[string]interface{}{"width": argAt(args, 0), "height": argAt(args, 1)})

	// Alerts
	case "acceptAlert":
		return c.post(ctx, sp+"/alert/accept", nil)
	case "dismissAlert":
		return c.post(ctx, sp+"/alert/dismiss", nil)
	case "alertText":
		return c.get(ctx, sp+"/alert/text")
	case "sendAlertText":
		return c.post(ctx, sp+"/alert/text", map[string]interface{}{"text": arg(args, 0)})

	// Scripts
	case "execute":
		scriptArgs := []interface{}{}
		if len(args) > 1 {
			scriptArgs = args[1:]
		}
		return c.post(ctx, sp+"/execute/sync", map[string]interface{}{"script": arg(args, 0), "args": scriptArgs})
	}
	return nil, core.ErrCommandFailed.WithMessage(fmt.Sprintf("unknown command %q", command))
}

// doubleClick moves the pointer to the element and clicks twice.
func (s *Session) doubleClick(ctx context.Context, elementID string) error {
	click := []interface{}{
		map[string]interface{}{"type": "pointerDown", "button": 0},
		map[string]interface{}{"type": "pointerUp", "button": 0},
	}
	actions := append([]interface{}{
		map[string]interface{}{"type": "pointerMove", "duration": 0, "origin": elementRef(elementID), "x": 0, "y": 0},
	}, append(click, click...)...)

	_, err := s.client.post(ctx, s.sessionPath()+"/actions", map[string]interface{}{
		"actions": []interface{}{map[string]interface{}{
			"type":       "pointer",
			"id":         "mouse",
			"parameters": map[string]interface{}{"pointerType": "mouse"},
			"actions":    actions,
		}},
	})
	if err != nil {
		return err
	}
	_, err = s.client.delete(ctx, s.sessionPath()+"/actions")
	return err
}

// switchToFrame selects the top-level context for nil, a frame index for
// a number, and otherwise the frame or iframe with that name or id.
func (s *Session) switchToFrame(ctx context.Context, id interface{}) (interface{}, error) {
	var target interface{}
	switch v := id.(type) {
	case nil:
	case int, int64, float64:
		target = v
	default:
		name := script.Stringify(v)
		el, err := s.findElement(ctx, "xpath", fmt.Sprintf(
			"//*[self::frame or self::iframe][@name=%s or @id=%s]", xpathLiteral(name), xpathLiteral(name)))
		if err != nil {
			return nil, err
		}
		target = elementRef(el)
	}
	return s.client.post(ctx, s.sessionPath()+"/frame", map[string]interface{}{"id": target})
}

// xpathLiteral quotes s as an XPath string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	return `concat("` + strings.Join(parts, `", '"', "`) + `")`
}

func argAt(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func arg(args []interface{}, i int) string {
	return script.Stringify(argAt(args, i))
}
