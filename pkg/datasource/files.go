package datasource

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/se-interpreter/pkg/vars"
)

// JSON reads an array of objects from the file at "path".
//
//	[{"user": "alice"}, {"user": "bob"}]
type JSON struct {
	Env EnvFunc
}

// Name returns "json".
func (JSON) Name() string { return "json" }

// Load reads the rows. Environment variables in the file are substituted
// before parsing.
func (j JSON) Load(cfg map[string]interface{}, scriptPath string) ([]Row, error) {
	data, path, err := readConfigFile(cfg, scriptPath)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(vars.SubstituteEnv(string(data), j.Env))))
	dec.UseNumber()
	var items []map[string]interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%s: invalid JSON data: %w", path, err)
	}
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, toRow(it))
	}
	return rows, nil
}

// XML reads the attributes of every /testdata/test element of the file at
// "path".
//
//	<testdata>
//	  <test user="alice" password="secret"/>
//	</testdata>
type XML struct {
	Env EnvFunc
}

// Name returns "xml".
func (XML) Name() string { return "xml" }

type xmlTestData struct {
	XMLName xml.Name `xml:"testdata"`
	Tests   []struct {
		Attrs []xml.Attr `xml:",any,attr"`
	} `xml:"test"`
}

// Load reads the rows. Attribute names and values are env-substituted.
func (x XML) Load(cfg map[string]interface{}, scriptPath string) ([]Row, error) {
	data, path, err := readConfigFile(cfg, scriptPath)
	if err != nil {
		return nil, err
	}
	var doc xmlTestData
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: invalid XML data: %w", path, err)
	}
	rows := make([]Row, 0, len(doc.Tests))
	for _, t := range doc.Tests {
		row := make(Row, len(t.Attrs))
		for _, a := range t.Attrs {
			row[vars.SubstituteEnv(a.Name.Local, x.Env)] = vars.SubstituteEnv(a.Value, x.Env)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// YAML reads a sequence of mappings from the file at "path".
type YAML struct {
	Env EnvFunc
}

// Name returns "yaml".
func (YAML) Name() string { return "yaml" }

// Load reads the rows. Environment variables are substituted before parsing.
func (y YAML) Load(cfg map[string]interface{}, scriptPath string) ([]Row, error) {
	data, path, err := readConfigFile(cfg, scriptPath)
	if err != nil {
		return nil, err
	}
	var items []map[string]interface{}
	if err := yaml.Unmarshal([]byte(vars.SubstituteEnv(string(data), y.Env)), &items); err != nil {
		return nil, fmt.Errorf("%s: invalid YAML data: %w", path, err)
	}
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, toRow(it))
	}
	return rows, nil
}
