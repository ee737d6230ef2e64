package steps

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
)

var builtin = Map{
	// Navigation
	"get":       Action(doWith("get", "url")),
	"goBack":    Action(do("back")),
	"goForward": Action(do("forward")),
	"refresh":   Action(do("refresh")),

	// Elements
	"clickElement":          Action(onElement("click")),
	"doubleClickElement":    Action(onElement("doubleClick")),
	"submitElement":         Action(onElement("submit")),
	"clearElement":          Action(onElement("clear")),
	"sendKeysToElement":     Action(sendKeysToElement),
	"setElementText":        Action(setElementText),
	"setElementSelected":    Action(setElementSelected(true)),
	"setElementNotSelected": Action(setElementSelected(false)),

	// Cookies
	"addCookie":    Action(addCookie),
	"deleteCookie": Action(doWith("deleteCookie", "name")),

	// Windows and frames
	"saveScreenshot":         Action(saveScreenshot),
	"setWindowSize":          Action(setWindowSize),
	"switchToWindow":         Action(doWith("switchToWindow", "name")),
	"switchToWindowByTitle":  Action(switchToWindowByTitle),
	"switchToFrame":          Action(switchToFrame),
	"switchToDefaultContent": Action(switchToDefaultContent),

	// Alerts
	"acceptAlert":  Action(do("acceptAlert")),
	"dismissAlert": Action(do("dismissAlert")),
	"answerAlert":  Action(answerAlert),

	// Flow
	"pause": Action(pause),
	"print": Action(printText),
	"echo":  Action(printText),
	"store": Action(storeText),

	// Getters
	"Title":            Getter("Title", "title", value("title")),
	"CurrentUrl":       Getter("CurrentUrl", "url", value("url")),
	"PageSource":       Getter("PageSource", "source", value("source")),
	"BodyText":         Getter("BodyText", "text", bodyText),
	"TextPresent":      Getter("TextPresent", "", textPresent),
	"Text":             Getter("Text", "text", elementValue("text")),
	"ElementPresent":   Getter("ElementPresent", "", elementPresent),
	"ElementAttribute": Getter("ElementAttribute", "value", elementValue("getAttribute", "attributeName")),
	"ElementValue":     Getter("ElementValue", "value", elementProperty("value")),
	"ElementStyle":     Getter("ElementStyle", "value", elementValue("cssProperty", "propertyName")),
	"ElementSelected":  Getter("ElementSelected", "", elementValue("isSelected")),
	"CookiePresent":    Getter("CookiePresent", "", cookiePresent),
	"CookieByName":     Getter("CookieByName", "value", cookieByName),
	"AlertText":        Getter("AlertText", "text", value("alertText")),
	"Eval":             Getter("Eval", "value", eval),
}

// Builtins returns the built-in step library.
func Builtins() Map {
	return builtin
}

// do runs a command without arguments.
func do(command string) ActionFunc {
	return func(ctx context.Context, sc Context) error {
		sess, err := sc.Session()
		if err != nil {
			return err
		}
		_, err = sess.Do(ctx, command)
		return err
	}
}

// doWith runs a command whose arguments are the named parameters.
func doWith(command string, params ...string) ActionFunc {
	return func(ctx context.Context, sc Context) error {
		args, err := paramArgs(sc, params)
		if err != nil {
			return err
		}
		sess, err := sc.Session()
		if err != nil {
			return err
		}
		_, err = sess.Do(ctx, command, args...)
		return err
	}
}

// onElement runs a command on the element found by the locator parameter.
func onElement(command string) ActionFunc {
	return func(ctx context.Context, sc Context) error {
		sess, el, err := locate(ctx, sc, "locator")
		if err != nil {
			return err
		}
		_, err = sess.Do(ctx, command, el)
		return err
	}
}

func sendKeysToElement(ctx context.Context, sc Context) error {
	text, err := sc.Param("text")
	if err != nil {
		return err
	}
	sess, el, err := locate(ctx, sc, "locator")
	if err != nil {
		return err
	}
	_, err = sess.Do(ctx, "sendKeys", el, text)
	return err
}

func setElementText(ctx context.Context, sc Context) error {
	text, err := sc.Param("text")
	if err != nil {
		return err
	}
	sess, el, err := locate(ctx, sc, "locator")
	if err != nil {
		return err
	}
	if _, err := sess.Do(ctx, "clear", el); err != nil {
		return err
	}
	_, err = sess.Do(ctx, "sendKeys", el, text)
	return err
}

// setElementSelected clicks the element only when its selection state
// differs from want.
func setElementSelected(want bool) ActionFunc {
	return func(ctx context.Context, sc Context) error {
		sess, el, err := locate(ctx, sc, "locator")
		if err != nil {
			return err
		}
		v, err := sess.Do(ctx, "isSelected", el)
		if err != nil {
			return err
		}
		if truthy(v) == want {
			return nil
		}
		_, err = sess.Do(ctx, "click", el)
		return err
	}
}

// addCookie sets a cookie. The optional "options" parameter holds
// comma-separated key=value pairs: path, domain, secure, httpOnly and
// max_age (seconds from now).
func addCookie(ctx context.Context, sc Context) error {
	args, err := paramArgs(sc, []string{"name", "value"})
	if err != nil {
		return err
	}
	cookie := map[string]interface{}{"name": args[0], "value": args[1]}
	if opts, err := sc.Param("options"); err == nil {
		for _, entry := range strings.Split(opts, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(entry), "=")
			if !ok || k == "" {
				continue
			}
			switch k {
			case "max_age":
				secs, err := strconv.Atoi(v)
				if err != nil {
					return core.ErrInvalidParameter.WithMessage(fmt.Sprintf("invalid max_age %q", v))
				}
				cookie["expiry"] = time.Now().Add(time.Duration(secs) * time.Second).Unix()
			case "secure", "httpOnly":
				cookie[k] = v == "true"
			default:
				cookie[k] = v
			}
		}
	}
	sess, err := sc.Session()
	if err != nil {
		return err
	}
	_, err = sess.Do(ctx, "setCookie", cookie)
	return err
}

// saveScreenshot writes a PNG to the "file" parameter, or to
// "<run name>-<unix millis>.png" when it is absent.
func saveScreenshot(ctx context.Context, sc Context) error {
	path, err := sc.Param("file")
	if err != nil {
		path = fmt.Sprintf("%s-%d.png", sc.Name(), time.Now().UnixMilli())
	}
	sess, err := sc.Session()
	if err != nil {
		return err
	}
	v, err := sess.Do(ctx, "takeScreenshot")
	if err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(script.Stringify(v))
	if err != nil {
		return fmt.Errorf("invalid screenshot data: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func setWindowSize(ctx context.Context, sc Context) error {
	w, err := intParam(sc, "width")
	if err != nil {
		return err
	}
	h, err := intParam(sc, "height")
	if err != nil {
		return err
	}
	sess, err := sc.Session()
	if err != nil {
		return err
	}
	_, err = sess.Do(ctx, "setWindowRect", w, h)
	return err
}

// switchToWindowByTitle tries each window handle in turn until one has the
// wanted title.
func switchToWindowByTitle(ctx context.Context, sc Context) error {
	want, err := sc.Param("title")
	if err != nil {
		return err
	}
	sess, err := sc.Session()
	if err != nil {
		return err
	}
	v, err := sess.Do(ctx, "windowHandles")
	if err != nil {
		return err
	}
	handles, _ := v.([]interface{})
	for _, h := range handles {
		if _, err := sess.Do(ctx, "switchToWindow", h); err != nil {
			return err
		}
		title, err := sess.Do(ctx, "title")
		if err != nil {
			return err
		}
		if script.Stringify(title) == want {
			return nil
		}
	}
	return fmt.Errorf("no window with title %q", want)
}

// switchToFrame selects a frame by index when the identifier is numeric,
// otherwise by name or id.
func switchToFrame(ctx context.Context, sc Context) error {
	id, err := sc.Param("identifier")
	if err != nil {
		return err
	}
	sess, err := sc.Session()
	if err != nil {
		return err
	}
	if n, err := strconv.Atoi(id); err == nil {
		_, err = sess.Do(ctx, "switchToFrame", n)
		return err
	}
	_, err = sess.Do(ctx, "switchToFrame", id)
	return err
}

func switchToDefaultContent(ctx context.Context, sc Context) error {
	sess, err := sc.Session()
	if err != nil {
		return err
	}
	_, err = sess.Do(ctx, "switchToFrame", nil)
	return err
}

func answerAlert(ctx context.Context, sc Context) error {
	text, err := sc.Param("text")
	if err != nil {
		return err
	}
	sess, err := sc.Session()
	if err != nil {
		return err
	}
	if _, err := sess.Do(ctx, "sendAlertText", text); err != nil {
		return err
	}
	_, err = sess.Do(ctx, "acceptAlert")
	return err
}

func pause(ctx context.Context, sc Context) error {
	ms, err := intParam(sc, "waitTime")
	if err != nil {
		return err
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printText(ctx context.Context, sc Context) error {
	text, err := sc.Param("text")
	if err != nil {
		return err
	}
	sc.Print(text)
	return nil
}

func storeText(ctx context.Context, sc Context) error {
	variable, err := sc.Param("variable")
	if err != nil {
		return err
	}
	text, err := sc.Param("text")
	if err != nil {
		return err
	}
	sc.SetVar(variable, text)
	return nil
}

// Getters

// value returns the result of a command without arguments.
func value(command string) GetterFunc {
	return func(ctx context.Context, sc Context) (interface{}, error) {
		sess, err := sc.Session()
		if err != nil {
			return nil, err
		}
		v, err := sess.Do(ctx, command)
		if err != nil {
			return nil, err
		}
		return script.Stringify(v), nil
	}
}

// elementValue runs a command on the located element, passing the named
// parameters after the element reference.
func elementValue(command string, params ...string) GetterFunc {
	return func(ctx context.Context, sc Context) (interface{}, error) {
		args, err := paramArgs(sc, params)
		if err != nil {
			return nil, err
		}
		sess, el, err := locate(ctx, sc, "locator")
		if err != nil {
			return nil, err
		}
		v, err := sess.Do(ctx, command, append([]interface{}{el}, args...)...)
		if err != nil {
			return nil, err
		}
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return script.Stringify(v), nil
	}
}

func elementProperty(name string) GetterFunc {
	return func(ctx context.Context, sc Context) (interface{}, error) {
		sess, el, err := locate(ctx, sc, "locator")
		if err != nil {
			return nil, err
		}
		v, err := sess.Do(ctx, "getProperty", el, name)
		if err != nil {
			return nil, err
		}
		return script.Stringify(v), nil
	}
}

func bodyText(ctx context.Context, sc Context) (interface{}, error) {
	sess, err := sc.Session()
	if err != nil {
		return nil, err
	}
	el, err := sess.Do(ctx, "elementByTagName", "html")
	if err != nil {
		return nil, err
	}
	text, err := sess.Do(ctx, "text", el)
	if err != nil {
		return nil, err
	}
	return script.Stringify(text), nil
}

func textPresent(ctx context.Context, sc Context) (interface{}, error) {
	want, err := sc.Param("text")
	if err != nil {
		return nil, err
	}
	body, err := bodyText(ctx, sc)
	if err != nil {
		return nil, err
	}
	return strings.Contains(body.(string), want), nil
}

// elementPresent reports whether the locator matches. Lookup failures count
// as absence; parameter and session errors still fail the step.
func elementPresent(ctx context.Context, sc Context) (interface{}, error) {
	loc, err := sc.Locator("locator")
	if err != nil {
		return nil, err
	}
	sess, err := sc.Session()
	if err != nil {
		return nil, err
	}
	_, err = sess.FindElement(ctx, loc)
	return err == nil, nil
}

func cookies(ctx context.Context, sc Context) ([]map[string]interface{}, error) {
	sess, err := sc.Session()
	if err != nil {
		return nil, err
	}
	v, err := sess.Do(ctx, "allCookies")
	if err != nil {
		return nil, err
	}
	list, _ := v.([]interface{})
	out := make([]map[string]interface{}, 0, len(list))
	for _, c := range list {
		if m, ok := c.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func cookiePresent(ctx context.Context, sc Context) (interface{}, error) {
	name, err := sc.Param("name")
	if err != nil {
		return nil, err
	}
	all, err := cookies(ctx, sc)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if script.Stringify(c["name"]) == name {
			return true, nil
		}
	}
	return false, nil
}

func cookieByName(ctx context.Context, sc Context) (interface{}, error) {
	name, err := sc.Param("name")
	if err != nil {
		return nil, err
	}
	all, err := cookies(ctx, sc)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if script.Stringify(c["name"]) == name {
			return script.Stringify(c["value"]), nil
		}
	}
	return nil, fmt.Errorf("no cookie with name %s found", name)
}

func eval(ctx context.Context, sc Context) (interface{}, error) {
	js, err := sc.Param("script")
	if err != nil {
		return nil, err
	}
	sess, err := sc.Session()
	if err != nil {
		return nil, err
	}
	v, err := sess.Do(ctx, "execute", js)
	if err != nil {
		return nil, err
	}
	return script.Stringify(v), nil
}

// Helpers

func locate(ctx context.Context, sc Context, name string) (core.Session, string, error) {
	loc, err := sc.Locator(name)
	if err != nil {
		return nil, "", err
	}
	sess, err := sc.Session()
	if err != nil {
		return nil, "", err
	}
	el, err := sess.FindElement(ctx, loc)
	if err != nil {
		return nil, "", err
	}
	return sess, el, nil
}

func paramArgs(sc Context, names []string) ([]interface{}, error) {
	args := make([]interface{}, 0, len(names))
	for _, n := range names {
		v, err := sc.Param(n)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func intParam(sc Context, name string) (int, error) {
	s, err := sc.Param(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, core.ErrInvalidParameter.WithMessage(fmt.Sprintf("parameter %q is not an integer: %q", name, s))
	}
	return n, nil
}

// Truthy reports whether a getter value counts as true: true, a non-empty
// string other than "false", or a non-zero number.
func Truthy(v interface{}) bool {
	return truthy(v)
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	s := script.Stringify(v)
	return s != "" && s != "0"
}
