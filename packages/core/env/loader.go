package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"gopkg.in/yaml.v3"
)

// Document is the YAML form of an environment set.
type Document struct {
	Name      string           `yaml:"name"`
	Variables []model.Variable `yaml:"variables"`
}

// LoadFile reads variables from a .env, .yaml or .yml file. The returned
// name is taken from the document when present, else from the file name.
func LoadFile(path string) (string, []model.Variable, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.TrimPrefix(name, ".")

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read environment file: %w", err)
		}
		docName, vars, err := ParseYAML(data)
		if err != nil {
			return "", nil, err
		}
		if docName != "" {
			name = docName
		}
		return name, vars, nil
	default:
		vars, err := LoadDotEnv(path)
		if err != nil {
			return "", nil, err
		}
		if name == "" || name == "env" {
			name = filepath.Base(path)
		}
		return name, vars, nil
	}
}

// ParseYAML accepts either a Document or a flat KEY: value mapping. Flat
// mappings keep their key order.
func ParseYAML(data []byte) (string, []model.Variable, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return "", nil, fmt.Errorf("failed to parse environment YAML: %w", err)
	}
	if len(root.Content) == 0 {
		return "", []model.Variable{}, nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return "", nil, fmt.Errorf("environment YAML must be a mapping")
	}

	if isDocument(mapping) {
		var doc Document
		if err := mapping.Decode(&doc); err != nil {
			return "", nil, fmt.Errorf("failed to decode environment document: %w", err)
		}
		if doc.Variables == nil {
			doc.Variables = []model.Variable{}
		}
		return doc.Name, doc.Variables, nil
	}

	vars := make([]model.Variable, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return "", nil, fmt.Errorf("line %d: value of %q must be a scalar", value.Line, key.Value)
		}
		vars = append(vars, model.Variable{Key: key.Value, Value: value.Value})
	}
	return "", vars, nil
}

func isDocument(mapping *yaml.Node) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == "variables" && mapping.Content[i+1].Kind == yaml.SequenceNode {
			return true
		}
	}
	return false
}
