package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/devicelab-dev/se-interpreter/pkg/core"
)

// Step is a single scripted action: a mandatory type, an optional negated
// flag and arbitrary action-specific parameters. Params holds every key of
// the source object, including "type" and "negated".
type Step struct {
	Type    string
	Negated bool
	Params  map[string]interface{}
}

// NewStep builds a step from a parameter map.
func NewStep(stepType string, params map[string]interface{}) *Step {
	p := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	p["type"] = stepType
	s := &Step{Type: stepType, Params: p}
	if neg, ok := p["negated"]; ok {
		s.Negated = truthyFlag(neg)
	}
	return s
}

// UnmarshalJSON decodes a step object. Numbers are kept as json.Number so
// parameters keep their literal text.
func (s *Step) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var params map[string]interface{}
	if err := dec.Decode(&params); err != nil {
		return err
	}
	if params == nil {
		return fmt.Errorf("step must be an object")
	}
	t, ok := params["type"].(string)
	if !ok || t == "" {
		return fmt.Errorf("step has no type")
	}
	*s = *NewStep(t, params)
	return nil
}

// MarshalJSON encodes the step as its parameter object.
func (s *Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Params)
}

// Has reports whether the step defines a parameter.
func (s *Step) Has(name string) bool {
	_, ok := s.Params[name]
	return ok
}

// Raw returns a parameter's raw value.
func (s *Step) Raw(name string) (interface{}, bool) {
	v, ok := s.Params[name]
	return v, ok
}

// Text returns a parameter as text without variable substitution.
// Non-string values are rendered in their JSON form.
func (s *Step) Text(name string) (string, bool) {
	v, ok := s.Params[name]
	if !ok {
		return "", false
	}
	return Stringify(v), true
}

// Locator decodes a {type, value} locator parameter.
func (s *Step) Locator(name string) (core.Locator, error) {
	raw, ok := s.Params[name]
	if !ok {
		return core.Locator{}, core.ErrMissingParameter.WithMessage(fmt.Sprintf("missing parameter %q", name))
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return core.Locator{}, core.ErrInvalidLocator.WithMessage(fmt.Sprintf("parameter %q is not a locator object", name))
	}
	typ, _ := m["type"].(string)
	strategy, err := core.ParseLocatorStrategy(typ)
	if err != nil {
		return core.Locator{}, err
	}
	return core.Locator{Type: strategy, Value: Stringify(m["value"])}, nil
}

// Describe returns a compact JSON form for logs and listeners.
func (s *Step) Describe() string {
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(s.Params[k])
		if err != nil {
			vb = []byte(strconv.Quote(fmt.Sprint(s.Params[k])))
		}
		b.Write(kb)
		b.WriteString(":")
		b.Write(vb)
	}
	b.WriteString("}")
	return b.String()
}

// Stringify renders a decoded JSON value as parameter text.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func truthyFlag(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	case json.Number:
		return t.String() != "0"
	}
	return false
}
