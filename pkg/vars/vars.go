// Package vars implements the per-run variable store and the template
// substitution applied to step parameters and loaded files.
package vars

import (
	"os"
	"regexp"
	"strings"
)

var (
	varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
	keyPattern = regexp.MustCompile(`!\{([A-Z0-9_]+)\}`)
)

// Store holds a run's variables. It is not safe for concurrent use; each
// TestRun owns its own Store.
type Store struct {
	values map[string]string
}

// NewStore creates a store seeded with a copy of initial.
func NewStore(initial map[string]string) *Store {
	s := &Store{values: make(map[string]string, len(initial))}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Get returns a variable value.
func (s *Store) Get(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Set sets a variable.
func (s *Store) Set(name, value string) {
	s.values[name] = value
}

// Snapshot returns a copy of all variables.
func (s *Store) Snapshot() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	return NewStore(s.values)
}

// Expand substitutes ${name} with variable values and !{KEY} with keyboard
// codes. Tokens naming unknown variables or keys are left verbatim, and
// substituted values are not scanned again.
func (s *Store) Expand(text string) string {
	if s == nil || len(s.values) == 0 {
		return ExpandKeys(text)
	}
	var b strings.Builder
	last := 0
	for _, loc := range varPattern.FindAllStringIndex(text, -1) {
		b.WriteString(ExpandKeys(text[last:loc[0]]))
		m := text[loc[0]:loc[1]]
		if v, ok := s.values[m[2:len(m)-1]]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(m)
		}
		last = loc[1]
	}
	b.WriteString(ExpandKeys(text[last:]))
	return b.String()
}

// ExpandKeys substitutes !{KEY} tokens from the key table.
func ExpandKeys(text string) string {
	return keyPattern.ReplaceAllStringFunc(text, func(m string) string {
		if code, ok := Keys[m[2:len(m)-1]]; ok {
			return code
		}
		return m
	})
}

// SubstituteEnv replaces ${VAR} with values from lookup, leaving the token
// unchanged when the variable is unset. A nil lookup uses os.LookupEnv.
func SubstituteEnv(text string, lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return varPattern.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := lookup(m[2 : len(m)-1]); ok {
			return v
		}
		return m
	})
}
