// Package schema implements layered attribute schemas for science data
// products: rule layers folded in latest-priority order, required-attribute
// templates, and metadata derivation through a registry of named functions.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	kiterrors "github.com/swxlab/swxkit/internal/errors"
	"github.com/swxlab/swxkit/pkg/types"
)

//go:embed data/default_global_attrs.yaml
var defaultGlobalLayerYAML []byte

//go:embed data/default_variable_attrs.yaml
var defaultVariableLayerYAML []byte

// Rule describes one attribute in a schema layer.
type Rule struct {
	Name         string
	Description  string
	Default      any
	Derived      bool
	DerivationFn string
	Required     bool
	Validate     bool
	Overwrite    bool

	// Variable-scope fields.
	Iterable    bool
	ValidValues []string
	Alternate   string
}

// Layer is one ordered set of attribute rules. Variable layers also carry
// per-role lists naming which attributes each variable role requires.
type Layer struct {
	Source string
	Rules  []Rule
	Index  map[types.Role][]string
}

type ruleYAML struct {
	Description  string     `yaml:"description"`
	Default      *yaml.Node `yaml:"default"`
	Derived      bool       `yaml:"derived"`
	DerivationFn string     `yaml:"derivation_fn"`
	Required     *bool      `yaml:"required"`
	Validate     bool       `yaml:"validate"`
	Overwrite    bool       `yaml:"overwrite"`
	Iterable     bool       `yaml:"iterable"`
	ValidValues  []string   `yaml:"valid_values"`
	Alternate    string     `yaml:"alternate"`
}

// DefaultGlobalLayer returns the embedded ISTP global attribute layer.
func DefaultGlobalLayer() Layer {
	layer, err := ParseGlobalLayer("default_global_attrs.yaml", defaultGlobalLayerYAML)
	if err != nil {
		panic(err)
	}
	return layer
}

// DefaultVariableLayer returns the embedded ISTP variable attribute layer.
func DefaultVariableLayer() Layer {
	layer, err := ParseVariableLayer("default_variable_attrs.yaml", defaultVariableLayerYAML)
	if err != nil {
		panic(err)
	}
	return layer
}

// LoadGlobalLayer reads a global attribute layer from a YAML file.
func LoadGlobalLayer(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layer{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
			fmt.Sprintf("read schema layer %s", path), err)
	}
	return ParseGlobalLayer(path, data)
}

// LoadVariableLayer reads a variable attribute layer from a YAML file.
func LoadVariableLayer(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layer{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
			fmt.Sprintf("read schema layer %s", path), err)
	}
	return ParseVariableLayer(path, data)
}

// ParseGlobalLayer parses a global attribute layer. Attribute order in the
// source document is preserved.
func ParseGlobalLayer(source string, data []byte) (Layer, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Layer{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
			fmt.Sprintf("parse schema layer %s", source), err)
	}
	root, err := mappingRoot(&doc, source)
	if err != nil {
		return Layer{}, err
	}

	layer := Layer{Source: source}
	for i := 0; i < len(root.Content); i += 2 {
		name := root.Content[i].Value
		rule, err := decodeRule(source, name, root.Content[i+1])
		if err != nil {
			return Layer{}, err
		}
		layer.Rules = append(layer.Rules, rule)
	}
	return layer, nil
}

// ParseVariableLayer parses a variable attribute layer: an attribute_key
// mapping of rules plus per-role attribute lists.
func ParseVariableLayer(source string, data []byte) (Layer, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Layer{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
			fmt.Sprintf("parse schema layer %s", source), err)
	}
	root, err := mappingRoot(&doc, source)
	if err != nil {
		return Layer{}, err
	}

	layer := Layer{Source: source, Index: make(map[types.Role][]string)}
	for i := 0; i < len(root.Content); i += 2 {
		key := root.Content[i].Value
		value := root.Content[i+1]

		if key == "attribute_key" {
			if value.Kind != yaml.MappingNode {
				return Layer{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
					fmt.Sprintf("schema layer %s: attribute_key must be a mapping", source), nil)
			}
			for j := 0; j < len(value.Content); j += 2 {
				name := value.Content[j].Value
				rule, err := decodeRule(source, name, value.Content[j+1])
				if err != nil {
					return Layer{}, err
				}
				layer.Rules = append(layer.Rules, rule)
			}
			continue
		}

		role, err := types.ParseRole(key)
		if err != nil {
			return Layer{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
				fmt.Sprintf("schema layer %s: unknown top-level key %q", source, key), nil)
		}
		var names []string
		if err := value.Decode(&names); err != nil {
			return Layer{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
				fmt.Sprintf("schema layer %s: role %s must list attribute names", source, role), err)
		}
		layer.Index[role] = names
	}
	return layer, nil
}

func mappingRoot(doc *yaml.Node, source string) (*yaml.Node, error) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 ||
		doc.Content[0].Kind != yaml.MappingNode {
		return nil, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
			fmt.Sprintf("schema layer %s: document root must be a mapping", source), nil)
	}
	return doc.Content[0], nil
}

func decodeRule(source, name string, node *yaml.Node) (Rule, error) {
	if node.Kind != yaml.MappingNode {
		return Rule{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
			fmt.Sprintf("schema layer %s: attribute %s must be a mapping", source, name), nil)
	}
	var raw ruleYAML
	if err := node.Decode(&raw); err != nil {
		return Rule{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
			fmt.Sprintf("schema layer %s: attribute %s", source, name), err)
	}
	if !hasKey(node, "description") {
		return Rule{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
			fmt.Sprintf("schema layer %s: attribute %s missing description", source, name), nil)
	}
	if raw.Required == nil {
		return Rule{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
			fmt.Sprintf("schema layer %s: attribute %s missing required", source, name), nil)
	}

	rule := Rule{
		Name:         name,
		Description:  strings.TrimSpace(raw.Description),
		Derived:      raw.Derived,
		DerivationFn: raw.DerivationFn,
		Required:     *raw.Required,
		Validate:     raw.Validate,
		Overwrite:    raw.Overwrite,
		Iterable:     raw.Iterable,
		ValidValues:  raw.ValidValues,
		Alternate:    raw.Alternate,
	}
	if raw.Default != nil && raw.Default.Tag != "!!null" {
		var value any
		if err := raw.Default.Decode(&value); err != nil {
			return Rule{}, kiterrors.NewSchemaError(kiterrors.CodeLoadFailed,
				fmt.Sprintf("schema layer %s: attribute %s default", source, name), err)
		}
		rule.Default = value
	}
	return rule, nil
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
