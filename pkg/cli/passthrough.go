package cli

import (
	"strconv"
	"strings"
)

// Option prefixes collected outside the declared flags.
const (
	browserPrefix  = "browser-"
	driverPrefix   = "driver-"
	listenerPrefix = "listener-"
)

// Passthrough holds the --browser-*, --driver-* and --listener-* options.
// Browser values keep every occurrence so a repeated browserName can fan
// out into one run set per browser.
type Passthrough struct {
	Browser  map[string][]interface{}
	Driver   map[string]interface{}
	Listener map[string]interface{}
	order    []string // browser keys in first-seen order
}

// splitPassthrough removes prefixed options from args. Both "--key=value"
// and "--key value" are accepted; a prefixed option followed by another
// option or nothing is true. Arguments after "--" are left alone.
func splitPassthrough(args []string) (Passthrough, []string) {
	p := Passthrough{
		Browser:  map[string][]interface{}{},
		Driver:   map[string]interface{}{},
		Listener: map[string]interface{}{},
	}
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			rest = append(rest, args[i:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") {
			rest = append(rest, arg)
			continue
		}
		name := strings.TrimLeft(arg, "-")
		var value string
		hasValue := false
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name, value, hasValue = name[:eq], name[eq+1:], true
		}

		var target string
		for _, prefix := range []string{browserPrefix, driverPrefix, listenerPrefix} {
			if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
				target = prefix
				break
			}
		}
		if target == "" {
			rest = append(rest, arg)
			continue
		}
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			value, hasValue = args[i], true
		}

		var v interface{} = true
		if hasValue {
			v = parseValue(value)
		}
		key := name[len(target):]
		switch target {
		case browserPrefix:
			if _, seen := p.Browser[key]; !seen {
				p.order = append(p.order, key)
			}
			p.Browser[key] = append(p.Browser[key], v)
		case driverPrefix:
			p.Driver[key] = v
		case listenerPrefix:
			p.Listener[key] = v
		}
	}
	return p, rest
}

// parseValue turns numeric and boolean text into numbers and booleans.
func parseValue(s string) interface{} {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// BrowserOptionsList overlays the browser options on base. Each value of a
// repeated browserName yields its own option set; any other repeated key
// keeps its last value.
func (p Passthrough) BrowserOptionsList(base map[string]interface{}) []map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(p.Browser))
	for k, v := range base {
		merged[k] = v
	}
	for _, k := range p.order {
		values := p.Browser[k]
		merged[k] = values[len(values)-1]
	}

	names := p.Browser["browserName"]
	if len(names) < 2 {
		return []map[string]interface{}{merged}
	}
	list := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		bo := make(map[string]interface{}, len(merged))
		for k, v := range merged {
			bo[k] = v
		}
		bo["browserName"] = name
		list = append(list, bo)
	}
	return list
}

// DriverOptions overlays the driver options on base.
func (p Passthrough) DriverOptions(base map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(p.Driver))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range p.Driver {
		merged[k] = v
	}
	return merged
}
