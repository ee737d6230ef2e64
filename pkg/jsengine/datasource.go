package jsengine

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/se-interpreter/pkg/datasource"
	"github.com/devicelab-dev/se-interpreter/pkg/script"
)

// DataSource is a data source backed by a module exporting name and
// load(config, scriptPath), which returns an array of row objects.
type DataSource struct {
	module *Module
	name   string
	load   goja.Callable
}

// NewDataSource wraps a module as a data source.
func NewDataSource(m *Module) (*DataSource, error) {
	name := m.exports.Get("name")
	if name == nil || goja.IsUndefined(name) || goja.IsNull(name) || name.String() == "" {
		return nil, pluginError(m.path, errors.New("data source must export a name"))
	}
	load, ok := m.function(m.exports, "load")
	if !ok {
		return nil, pluginError(m.path, errors.New("data source must export load(config, scriptPath)"))
	}
	return &DataSource{module: m, name: name.String(), load: load}, nil
}

// Name returns the exported name.
func (d *DataSource) Name() string {
	return d.name
}

// Load calls the module's load function.
func (d *DataSource) Load(cfg map[string]interface{}, scriptPath string) ([]datasource.Row, error) {
	e := d.module.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if cfg == nil {
		cfg = map[string]interface{}{}
	}
	v, err := d.load(d.module.exports, e.runtime.ToValue(cfg), e.runtime.ToValue(scriptPath))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.name, err)
	}
	items, ok := v.Export().([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: load must return an array, got %s", d.name, v.String())
	}

	rows := make([]datasource.Row, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s: row %d is not an object", d.name, i+1)
		}
		row := make(datasource.Row, len(m))
		for k, val := range m {
			row[k] = script.Stringify(val)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
