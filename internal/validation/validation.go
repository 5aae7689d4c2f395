// Package validation checks containers against a schema and reports
// compliance problems as human-readable violation strings. Structural
// defects that make a container impossible to check are errors instead.
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swxlab/swxkit/internal/container"
	kiterrors "github.com/swxlab/swxkit/internal/errors"
	"github.com/swxlab/swxkit/internal/schema"
	"github.com/swxlab/swxkit/pkg/types"
)

// ValidateFile loads a container file and validates it. A file that cannot
// be opened or decoded yields a single violation naming the path.
func ValidateFile(path string, s *schema.Schema) []string {
	c, err := container.Load(path, s)
	if err != nil {
		return []string{fmt.Sprintf("Could not open container file at path: %s", path)}
	}
	violations, err := ValidateContainer(s, c)
	if err != nil {
		violations = append(violations, err.Error())
	}
	return violations
}

// ValidateContainer checks the global attributes and every variable of c
// against the schema, in declaration order. A nil schema uses the one the
// container is bound to.
func ValidateContainer(s *schema.Schema, c *container.Container) ([]string, error) {
	if s == nil {
		s = c.Schema()
	}
	if c.Len() == 0 {
		for _, name := range c.Names() {
			if v, _ := c.Variable(name); v.RecordVarying {
				return nil, kiterrors.NewValidationError(kiterrors.CodeMissingEpoch,
					"container carries record-varying data but no epoch samples")
			}
		}
	}

	violations := validateGlobal(s, c.GlobalMeta())

	epoch := &container.Variable{
		Name:          c.EpochName(),
		Data:          types.Times(c.EpochTimes()...),
		Meta:          c.EpochMeta(),
		RecordVarying: true,
	}
	violations = append(violations, validateVariable(s, c, epoch, true)...)
	for _, name := range c.Names() {
		v, _ := c.Variable(name)
		violations = append(violations, validateVariable(s, c, v, false)...)
	}
	return violations, nil
}

func validateGlobal(s *schema.Schema, meta *types.Metadata) []string {
	var violations []string
	for _, name := range s.GlobalNames() {
		rule, _ := s.GlobalRule(name)
		if rule.Required && !meta.IsSet(name) {
			violations = append(violations,
				fmt.Sprintf("Required attribute (%s) not present in global attributes.", name))
			continue
		}
		if msg := checkValidValues(rule, meta, ""); msg != "" {
			violations = append(violations, msg)
		}
	}
	return violations
}

func validateVariable(s *schema.Schema, c *container.Container, v *container.Variable, isEpoch bool) []string {
	if !v.Meta.IsSet("VAR_TYPE") {
		return []string{fmt.Sprintf(
			"Variable: %s missing 'VAR_TYPE' attribute. Cannot Validate Variable.", v.Name)}
	}

	var violations []string
	role := c.RoleOf(v)

	required := s.RequiredAttributes(role)
	if isEpoch {
		required = append(required, s.RequiredAttributes(types.RoleEpoch)...)
	}
	if v.WCS != nil {
		required = append(required, s.RequiredAttributes(types.RoleSpectra)...)
	}

	for _, attr := range required {
		rule, _ := s.VariableRule(attr)
		if rule.Iterable {
			root := strings.TrimRight(attr, "i")
			for dim := 1; dim <= axisCount(v); dim++ {
				if !v.Meta.IsSet(root + strconv.Itoa(dim)) {
					violations = append(violations, missingAttr(v.Name, root+strconv.Itoa(dim), rule))
				}
			}
			continue
		}
		if !v.Meta.IsSet(attr) {
			if rule.Alternate != "" && v.Meta.IsSet(rule.Alternate) {
				continue
			}
			violations = append(violations, missingAttr(v.Name, attr, rule))
		}
	}

	for _, attr := range s.VariableNames() {
		rule, _ := s.VariableRule(attr)
		if msg := checkValidValues(rule, v.Meta, v.Name); msg != "" {
			violations = append(violations, msg)
		}
	}

	violations = append(violations, ValidRange(v)...)
	violations = append(violations, ValidScale(v)...)
	return violations
}

func missingAttr(variable, attr string, rule schema.Rule) string {
	if rule.Alternate != "" {
		return fmt.Sprintf("Variable: %s missing '%s' attribute. Alternative: %s not found.",
			variable, attr, rule.Alternate)
	}
	return fmt.Sprintf("Variable: %s missing '%s' attribute.", variable, attr)
}

func checkValidValues(rule schema.Rule, meta *types.Metadata, variable string) string {
	if len(rule.ValidValues) == 0 || !meta.IsSet(rule.Name) {
		return ""
	}
	value, ok := meta.Value(rule.Name).(string)
	if !ok {
		return ""
	}
	for _, valid := range rule.ValidValues {
		if value == valid {
			return ""
		}
	}
	prefix := fmt.Sprintf("Attribute '%s' not one of valid options.", rule.Name)
	if variable != "" {
		prefix = fmt.Sprintf("Variable: %s %s", variable, prefix)
	}
	return fmt.Sprintf("%s Was %s, expected one of %s",
		prefix, value, strings.Join(rule.ValidValues, " "))
}

// axisCount returns the spectral axis count: a WCSAXES attribute override
// when present, the world coordinate axis count otherwise.
func axisCount(v *container.Variable) int {
	if raw := v.Meta.Value("WCSAXES"); raw != nil {
		if n, ok := toFloat(raw); ok && n > 0 {
			return int(n)
		}
	}
	return v.WCS.NAxis()
}
