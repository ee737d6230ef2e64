package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// rawScript mirrors the script file format.
type rawScript struct {
	Type           string      `json:"type"`
	Steps          []*Step     `json:"steps"`
	Data           *DataConfig `json:"data"`
	TimeoutSeconds json.Number `json:"timeoutSeconds"`
}

// ParseFile parses a single script file.
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided script file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses script JSON content.
func Parse(data []byte, sourcePath string) (*Script, error) {
	var raw rawScript
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid script: %v", err)}
	}
	if raw.Type != "" && raw.Type != "script" {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("expected type \"script\", got %q", raw.Type)}
	}

	s := &Script{
		Path:  sourcePath,
		Name:  NameFromPath(sourcePath),
		Steps: raw.Steps,
		Data:  raw.Data,
	}
	for i, step := range s.Steps {
		if step == nil {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("step #%d is null", i+1)}
		}
	}
	if raw.TimeoutSeconds != "" {
		n, err := raw.TimeoutSeconds.Int64()
		if err != nil {
			f, ferr := raw.TimeoutSeconds.Float64()
			if ferr != nil {
				return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid timeoutSeconds: %v", err)}
			}
			n = int64(f)
		}
		s.TimeoutSeconds = int(n)
	}
	return s, nil
}

// NameFromPath derives a run name from a script path: the base name
// without the .json extension.
func NameFromPath(path string) string {
	if path == "" {
		return "Untitled"
	}
	return strings.TrimSuffix(filepath.Base(path), ".json")
}
