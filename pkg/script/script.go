// Package script handles parsing and representation of JSON test scripts.
package script

// Script represents a parsed test script. It is immutable after loading and
// shared read-only by every TestRun derived from it.
type Script struct {
	Path           string      // Path to the source file
	Name           string      // File name without directory and .json extension
	Steps          []*Step     // Steps to execute
	Data           *DataConfig // Optional data-driven parameterization
	TimeoutSeconds int         // Optional waitFor budget override
}

// DataConfig selects a data source and its per-source settings.
//
//	{"source": "json", "configs": {"json": {"path": "users.json"}}}
type DataConfig struct {
	Source  string                            `json:"source"`
	Configs map[string]map[string]interface{} `json:"configs"`
}

// SourceConfig returns the settings block for the selected source.
func (d *DataConfig) SourceConfig() map[string]interface{} {
	if d == nil || d.Configs == nil {
		return nil
	}
	return d.Configs[d.Source]
}

// Len returns the number of steps.
func (s *Script) Len() int {
	return len(s.Steps)
}
