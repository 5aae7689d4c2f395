package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	kiterrors "github.com/swxlab/swxkit/internal/errors"
	"github.com/swxlab/swxkit/pkg/types"
)

// GlobalData is the view of a data container a global derivation sees.
type GlobalData interface {
	GlobalMeta() *types.Metadata
	EpochTimes() []time.Time
}

// Variable is the view of a container variable a variable derivation sees.
type Variable struct {
	Name  string
	Data  types.Array
	Meta  *types.Metadata
	Units string

	// Epoch names the epoch variable this variable depends on.
	Epoch   string
	IsEpoch bool
	WCS     *types.WCS
}

// GlobalFunc derives one global attribute value from the container.
type GlobalFunc func(data GlobalData) (any, error)

// VariableFunc derives one variable attribute value. For iterable
// attributes dim is the zero-based dimension index; otherwise dim is -1.
type VariableFunc func(v Variable, guess types.CDFType, dim int) (any, error)

// Registry maps derivation function names to implementations. Rules bind
// to registry entries by name; binding is checked when the schema is built.
type Registry struct {
	global   map[string]GlobalFunc
	variable map[string]VariableFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		global:   make(map[string]GlobalFunc),
		variable: make(map[string]VariableFunc),
	}
}

// RegisterGlobal binds name to fn for global attribute derivations.
// Re-registering a name replaces the previous binding, which is how
// missions specialize the default derivations.
func (r *Registry) RegisterGlobal(name string, fn GlobalFunc) {
	r.global[name] = fn
}

// RegisterVariable binds name to fn for variable attribute derivations.
func (r *Registry) RegisterVariable(name string, fn VariableFunc) {
	r.variable[name] = fn
}

// HasGlobal reports whether a global derivation is registered under name.
func (r *Registry) HasGlobal(name string) bool {
	_, ok := r.global[name]
	return ok
}

// HasVariable reports whether a variable derivation is registered under name.
func (r *Registry) HasVariable(name string) bool {
	_, ok := r.variable[name]
	return ok
}

// DeriveGlobal computes every derived global attribute in declaration
// order. A failing derivation is recorded and skipped; the rest of the
// batch still runs.
func (s *Schema) DeriveGlobal(data GlobalData) (*types.Metadata, []error) {
	derived := types.NewMetadata()
	var failures []error
	for _, name := range s.global.order {
		rule := s.global.rules[name]
		if !rule.Derived {
			continue
		}
		value, err := s.registry.global[rule.DerivationFn](data)
		if err != nil {
			failure := kiterrors.NewDerivationError(kiterrors.CodeDerivationFailed,
				fmt.Sprintf("derive global attribute %s", name), err)
			s.log.Warn().Str("attribute", name).Err(err).Msg("global derivation failed")
			failures = append(failures, failure)
			continue
		}
		derived.Set(name, value)
	}
	return derived, failures
}

// DeriveVariable computes the derived attributes applicable to a variable:
// those required for its role, plus the epoch attributes for epoch
// variables and the spectral attributes for variables carrying world
// coordinates. Iterable attributes fan out into one key per dimension with
// a one-based suffix.
func (s *Schema) DeriveVariable(v Variable, guess types.CDFType, role types.Role) (*types.Metadata, []error) {
	applicable := make(map[string]bool)
	switch role {
	case types.RoleData, types.RoleSupportData, types.RoleMetadata:
		for _, name := range s.roleIndex[role] {
			applicable[name] = true
		}
	}
	if v.IsEpoch {
		for _, name := range s.roleIndex[types.RoleEpoch] {
			applicable[name] = true
		}
	}
	if v.WCS != nil {
		for _, name := range s.roleIndex[types.RoleSpectra] {
			applicable[name] = true
		}
	}

	derived := types.NewMetadata()
	var failures []error
	record := func(name string, err error) {
		failure := kiterrors.NewDerivationError(kiterrors.CodeDerivationFailed,
			fmt.Sprintf("derive attribute %s for variable %s", name, v.Name), err)
		s.log.Warn().Str("variable", v.Name).Str("attribute", name).Err(err).
			Msg("variable derivation failed")
		failures = append(failures, failure)
	}

	for _, name := range s.variable.order {
		rule := s.variable.rules[name]
		if !rule.Derived || !applicable[name] {
			continue
		}
		fn := s.registry.variable[rule.DerivationFn]

		if rule.Iterable {
			// CNAMEi fans out to CNAME1..CNAMEn, one key per dimension.
			root := strings.TrimRight(name, "i")
			for dim := 0; dim < variableDimensions(v); dim++ {
				value, err := fn(v, guess, dim)
				if err != nil {
					record(root+strconv.Itoa(dim+1), err)
					continue
				}
				derived.Set(root+strconv.Itoa(dim+1), value)
			}
			continue
		}

		value, err := fn(v, guess, -1)
		if err != nil {
			record(name, err)
			continue
		}
		derived.Set(name, value)
	}
	return derived, failures
}

// variableDimensions returns the number of dimensions iterable attributes
// span: a WCSAXES override if set, otherwise the world coordinate axis
// count.
func variableDimensions(v Variable) int {
	if v.Meta != nil {
		if raw := v.Meta.Value("WCSAXES"); raw != nil {
			if n, ok := toFloat(raw); ok && n > 0 {
				return int(n)
			}
		}
	}
	return v.WCS.NAxis()
}

// ApplyGlobal merges attrs into meta under the overwrite policy: an
// existing non-nil value is kept unless the attribute's rule allows
// overwriting and the derived value differs.
func (s *Schema) ApplyGlobal(meta, attrs *types.Metadata) {
	for _, name := range attrs.Keys() {
		value := attrs.Value(name)
		rule, known := s.global.get(name)
		s.apply(meta, name, value, rule, known)
	}
}

// ApplyVariable merges attrs into a variable's metadata under the same
// overwrite policy, keyed on the variable attribute rules. Fanned-out
// iterable keys fall back to their root rule.
func (s *Schema) ApplyVariable(meta, attrs *types.Metadata) {
	for _, name := range attrs.Keys() {
		value := attrs.Value(name)
		rule, known := s.variable.get(name)
		if !known {
			rule, known = s.iterableRootRule(name)
		}
		s.apply(meta, name, value, rule, known)
	}
}

func (s *Schema) apply(meta *types.Metadata, name string, value any, rule Rule, known bool) {
	existing, present := meta.Get(name)
	if present && existing != nil && known {
		if rule.Overwrite && !reflect.DeepEqual(existing, value) {
			s.log.Debug().Str("attribute", name).Msg("overwriting attribute value")
			meta.Set(name, value)
		}
		return
	}
	meta.Set(name, value)
}

// iterableRootRule resolves a dimension-suffixed key such as CNAME2 back
// to its iterable rule CNAMEi.
func (s *Schema) iterableRootRule(name string) (Rule, bool) {
	trimmed := strings.TrimRight(name, "0123456789")
	if trimmed == name {
		return Rule{}, false
	}
	rule, ok := s.variable.get(trimmed + "i")
	if !ok || !rule.Iterable {
		return Rule{}, false
	}
	return rule, true
}
