package schema

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/swxlab/swxkit/internal/config"
	kiterrors "github.com/swxlab/swxkit/internal/errors"
	"github.com/swxlab/swxkit/pkg/types"
)

// ruleSet is an ordered collection of rules. Folding a layer in replaces
// whole rules last-wins while keeping first-seen attribute order.
type ruleSet struct {
	order []string
	rules map[string]Rule
}

func newRuleSet() *ruleSet {
	return &ruleSet{rules: make(map[string]Rule)}
}

func (s *ruleSet) put(r Rule) {
	if _, ok := s.rules[r.Name]; !ok {
		s.order = append(s.order, r.Name)
	}
	s.rules[r.Name] = r
}

func (s *ruleSet) get(name string) (Rule, bool) {
	r, ok := s.rules[name]
	return r, ok
}

// Schema is the folded view of an ordered list of global and variable
// attribute layers, bound to a derivation registry and a mission profile.
type Schema struct {
	global    *ruleSet
	variable  *ruleSet
	roleIndex map[types.Role][]string
	registry  *Registry
	mission   config.Mission
	log       zerolog.Logger
}

// Options configures schema construction. Layers fold left to right on top
// of the embedded defaults (unless UseDefaults is false); a later layer's
// rule replaces an earlier rule of the same name wholesale.
type Options struct {
	GlobalLayers   []Layer
	VariableLayers []Layer
	UseDefaults    bool
	Registry       *Registry
	Mission        config.Mission
	Logger         zerolog.Logger
}

// New folds the layers into a Schema. Construction fails if any derived
// rule names a function the registry does not know.
func New(opts Options) (*Schema, error) {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry(opts.Mission)
	}

	s := &Schema{
		global:    newRuleSet(),
		variable:  newRuleSet(),
		roleIndex: make(map[types.Role][]string),
		registry:  opts.Registry,
		mission:   opts.Mission,
		log:       opts.Logger,
	}

	globalLayers := opts.GlobalLayers
	variableLayers := opts.VariableLayers
	if opts.UseDefaults {
		globalLayers = append([]Layer{DefaultGlobalLayer()}, globalLayers...)
		variableLayers = append([]Layer{DefaultVariableLayer()}, variableLayers...)
	}

	for _, layer := range globalLayers {
		for _, rule := range layer.Rules {
			s.global.put(rule)
		}
	}
	for _, layer := range variableLayers {
		for _, rule := range layer.Rules {
			s.variable.put(rule)
		}
		for role, names := range layer.Index {
			s.roleIndex[role] = names
		}
	}

	for _, name := range s.global.order {
		rule := s.global.rules[name]
		if rule.Derived && !s.registry.HasGlobal(rule.DerivationFn) {
			return nil, kiterrors.NewDerivationError(kiterrors.CodeUnknownDerivation,
				fmt.Sprintf("global attribute %s names unregistered derivation %q",
					rule.Name, rule.DerivationFn), nil)
		}
	}
	for _, name := range s.variable.order {
		rule := s.variable.rules[name]
		if rule.Derived && !s.registry.HasVariable(rule.DerivationFn) {
			return nil, kiterrors.NewDerivationError(kiterrors.CodeUnknownDerivation,
				fmt.Sprintf("variable attribute %s names unregistered derivation %q",
					rule.Name, rule.DerivationFn), nil)
		}
	}
	return s, nil
}

// NewDefault builds the default ISTP schema for the mission selected by the
// embedded configuration.
func NewDefault() *Schema {
	s, err := New(Options{UseDefaults: true, Mission: config.Default().Mission})
	if err != nil {
		panic(err)
	}
	return s
}

// Mission returns the mission profile the schema was built with.
func (s *Schema) Mission() config.Mission { return s.mission }

// GlobalRule returns the folded rule for a global attribute.
func (s *Schema) GlobalRule(name string) (Rule, bool) { return s.global.get(name) }

// VariableRule returns the folded rule for a variable attribute.
func (s *Schema) VariableRule(name string) (Rule, bool) { return s.variable.get(name) }

// GlobalNames returns the global attribute names in declaration order.
func (s *Schema) GlobalNames() []string { return s.global.order }

// VariableNames returns the variable attribute names in declaration order.
func (s *Schema) VariableNames() []string { return s.variable.order }

// DefaultGlobalAttributes returns the global attributes that carry layer
// defaults, in declaration order.
func (s *Schema) DefaultGlobalAttributes() *types.Metadata {
	defaults := types.NewMetadata()
	for _, name := range s.global.order {
		if rule := s.global.rules[name]; rule.Default != nil {
			defaults.Set(name, rule.Default)
		}
	}
	return defaults
}

// DefaultVariableAttributes returns the variable attributes that carry
// layer defaults, in declaration order.
func (s *Schema) DefaultVariableAttributes() *types.Metadata {
	defaults := types.NewMetadata()
	for _, name := range s.variable.order {
		if rule := s.variable.rules[name]; rule.Default != nil {
			defaults.Set(name, rule.Default)
		}
	}
	return defaults
}

// RequiredAttributes returns the attribute names a variable of the given
// role must carry.
func (s *Schema) RequiredAttributes(role types.Role) []string {
	names := s.roleIndex[role]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// GlobalTemplate returns the required global attributes that cannot be
// derived, keyed in declaration order with nil values. The optional
// instrument, level, and version selectors pre-fill Descriptor, Data_level,
// and Data_version.
func (s *Schema) GlobalTemplate(instrument, level, version string) (*types.Metadata, error) {
	template := types.NewMetadata()
	for _, name := range s.global.order {
		rule := s.global.rules[name]
		if rule.Required && !rule.Derived && rule.Default == nil {
			template.Set(name, nil)
		}
	}

	if instrument != "" {
		inst, ok := s.mission.Instrument(instrument)
		if !ok {
			return nil, fmt.Errorf("instrument %q is not recognized, must be one of %v",
				instrument, s.mission.InstrumentNames())
		}
		template.Set("Descriptor",
			fmt.Sprintf("%s>%s", strings.ToUpper(inst.Name), inst.FullName))
	}

	if level != "" {
		if !s.mission.ValidLevel(level) {
			return nil, fmt.Errorf("level %q is not recognized, must be one of %v",
				level, s.mission.ValidDataLevels)
		}
		if level == "ql" {
			template.Set("Data_level", fmt.Sprintf("%s>Quicklook", strings.ToUpper(level)))
		} else {
			template.Set("Data_level",
				fmt.Sprintf("%s>Level %s", strings.ToUpper(level), level[1:]))
		}
	}

	if version != "" {
		if len(strings.Split(version, ".")) != 3 {
			return nil, fmt.Errorf("version %q is not formatted correctly, should be X.Y.Z", version)
		}
		template.Set("Data_version", version)
	}
	return template, nil
}

// MeasurementTemplate returns the required variable attributes that cannot
// be derived, keyed in declaration order with nil values.
func (s *Schema) MeasurementTemplate() *types.Metadata {
	template := types.NewMetadata()
	for _, name := range s.variable.order {
		rule := s.variable.rules[name]
		if rule.Required && !rule.Derived {
			template.Set(name, nil)
		}
	}
	return template
}

// AttributeInfo is a rule listing row. RequiredFor is populated for
// variable attributes only.
type AttributeInfo struct {
	Rule
	RequiredFor []types.Role
}

// GlobalAttributeInfo lists the folded global rules in declaration order.
// With a name, it returns just that attribute or an error if unknown.
func (s *Schema) GlobalAttributeInfo(name string) ([]AttributeInfo, error) {
	if name != "" {
		rule, ok := s.global.get(name)
		if !ok {
			return nil, fmt.Errorf("no global metadata for attribute name: %s", name)
		}
		return []AttributeInfo{{Rule: rule}}, nil
	}
	out := make([]AttributeInfo, 0, len(s.global.order))
	for _, n := range s.global.order {
		out = append(out, AttributeInfo{Rule: s.global.rules[n]})
	}
	return out, nil
}

// MeasurementAttributeInfo lists the folded variable rules in declaration
// order, annotated with the roles that require each attribute.
func (s *Schema) MeasurementAttributeInfo(name string) ([]AttributeInfo, error) {
	build := func(rule Rule) AttributeInfo {
		info := AttributeInfo{Rule: rule}
		for _, role := range types.Roles() {
			for _, required := range s.roleIndex[role] {
				if required == rule.Name {
					info.RequiredFor = append(info.RequiredFor, role)
				}
			}
		}
		return info
	}

	if name != "" {
		rule, ok := s.variable.get(name)
		if !ok {
			return nil, fmt.Errorf("no variable metadata for attribute name: %s", name)
		}
		return []AttributeInfo{build(rule)}, nil
	}
	out := make([]AttributeInfo, 0, len(s.variable.order))
	for _, n := range s.variable.order {
		out = append(out, build(s.variable.rules[n]))
	}
	return out, nil
}
