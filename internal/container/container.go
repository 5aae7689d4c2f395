// Package container holds time-tagged science measurements together with
// their schema-managed metadata: an epoch column, record-varying
// measurements and spectra, non-record-varying support variables, and the
// global attributes of the product.
package container

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/swxlab/swxkit/internal/cdfio"
	kiterrors "github.com/swxlab/swxkit/internal/errors"
	"github.com/swxlab/swxkit/internal/schema"
	"github.com/swxlab/swxkit/pkg/types"
)

// DefaultEpochName is the variable name used for the epoch column when the
// caller does not choose one.
const DefaultEpochName = "Epoch"

// Variable is one named data column with its attributes. RecordVarying
// variables have one record per epoch sample; support variables do not vary
// by record. Spectra additionally carry a world coordinate system.
type Variable struct {
	Name          string
	Data          types.Array
	Meta          *types.Metadata
	Units         string
	RecordVarying bool
	WCS           *types.WCS
}

// Container is an in-memory science data product.
type Container struct {
	schema    *schema.Schema
	epochName string
	epoch     []time.Time
	epochMeta *types.Metadata
	order     []string
	vars      map[string]*Variable
	meta      *types.Metadata
	log       zerolog.Logger
}

// Options configures container construction. Schema defaults to the mission
// default schema; EpochName defaults to "Epoch". Meta entries override the
// seeded attribute defaults.
type Options struct {
	Schema    *schema.Schema
	EpochName string
	Epoch     []time.Time
	Meta      *types.Metadata
	Logger    zerolog.Logger
}

// New builds an empty container around an epoch column. The global
// attributes are seeded from the schema's defaults and required-attribute
// template, then overridden by the supplied metadata.
func New(opts Options) (*Container, error) {
	if len(opts.Epoch) == 0 {
		return nil, kiterrors.NewValidationError(kiterrors.CodeMissingEpoch,
			"a container requires an epoch column with at least one timestamp")
	}
	s := opts.Schema
	if s == nil {
		s = schema.NewDefault()
	}
	epochName := opts.EpochName
	if epochName == "" {
		epochName = DefaultEpochName
	}

	meta := s.DefaultGlobalAttributes()
	template, err := s.GlobalTemplate("", "", "")
	if err != nil {
		return nil, err
	}
	meta.Update(template)
	meta.Update(opts.Meta)

	epochMeta := s.MeasurementTemplate()
	epochMeta.Set("VAR_TYPE", "support_data")

	epoch := make([]time.Time, len(opts.Epoch))
	copy(epoch, opts.Epoch)

	return &Container{
		schema:    s,
		epochName: epochName,
		epoch:     epoch,
		epochMeta: epochMeta,
		vars:      make(map[string]*Variable),
		meta:      meta,
		log:       opts.Logger,
	}, nil
}

// GlobalMeta returns the global attributes. The map is live; mutations are
// visible to later derivation and validation passes.
func (c *Container) GlobalMeta() *types.Metadata { return c.meta }

// EpochTimes returns the epoch column.
func (c *Container) EpochTimes() []time.Time { return c.epoch }

// EpochName returns the name of the epoch variable.
func (c *Container) EpochName() string { return c.epochName }

// EpochMeta returns the attributes of the epoch variable.
func (c *Container) EpochMeta() *types.Metadata { return c.epochMeta }

// Schema returns the schema the container is bound to.
func (c *Container) Schema() *schema.Schema { return c.schema }

// Len returns the number of epoch samples.
func (c *Container) Len() int { return len(c.epoch) }

// Names returns the variable names in insertion order, epoch excluded.
func (c *Container) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Variable returns the named variable.
func (c *Container) Variable(name string) (*Variable, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// TimeRange returns the first and last epoch timestamps.
func (c *Container) TimeRange() (time.Time, time.Time) {
	return c.epoch[0], c.epoch[len(c.epoch)-1]
}

// AddMeasurement adds a one-dimensional record-varying column. The column
// must have exactly one value per epoch sample.
func (c *Container) AddMeasurement(name string, data types.Array, units string, meta *types.Metadata) error {
	if err := c.checkName(name); err != nil {
		return err
	}
	if data.NDim() != 1 {
		return kiterrors.NewContainerError(kiterrors.CodeLengthMismatch,
			fmt.Sprintf("measurement %s must be one dimensional, got %d dimensions; use AddSpectra for higher-dimensional data",
				name, data.NDim()))
	}
	if data.Len() != len(c.epoch) {
		return kiterrors.NewContainerError(kiterrors.CodeLengthMismatch,
			fmt.Sprintf("measurement %s has %d records but the epoch has %d samples",
				name, data.Len(), len(c.epoch)))
	}
	c.insert(&Variable{
		Name:          name,
		Data:          data,
		Meta:          c.seedVariableMeta(meta, "data"),
		Units:         units,
		RecordVarying: true,
	})
	return nil
}

// AddSupport adds a non-record-varying variable, typically calibration
// constants or label strings.
func (c *Container) AddSupport(name string, data types.Array, meta *types.Metadata) error {
	if err := c.checkName(name); err != nil {
		return err
	}
	role := "support_data"
	if data.Kind() == types.KindString {
		role = "metadata"
	}
	c.insert(&Variable{
		Name: name,
		Data: data,
		Meta: c.seedVariableMeta(meta, role),
	})
	return nil
}

// AddSpectra adds a multi-dimensional record-varying variable with world
// coordinates. A nil wcs gets default axes, one per data dimension.
func (c *Container) AddSpectra(name string, data types.Array, units string, meta *types.Metadata, wcs *types.WCS) error {
	if err := c.checkName(name); err != nil {
		return err
	}
	if data.NDim() < 2 {
		return kiterrors.NewContainerError(kiterrors.CodeLengthMismatch,
			fmt.Sprintf("spectra %s must have at least two dimensions, got %d", name, data.NDim()))
	}
	if data.Len() != len(c.epoch) {
		return kiterrors.NewContainerError(kiterrors.CodeLengthMismatch,
			fmt.Sprintf("spectra %s has %d records but the epoch has %d samples",
				name, data.Len(), len(c.epoch)))
	}
	if wcs == nil {
		wcs = types.NewWCS(data.NDim())
	}
	c.insert(&Variable{
		Name:          name,
		Data:          data,
		Meta:          c.seedVariableMeta(meta, "data"),
		Units:         units,
		RecordVarying: true,
		WCS:           wcs,
	})
	return nil
}

// Remove deletes a variable.
func (c *Container) Remove(name string) error {
	if _, ok := c.vars[name]; !ok {
		return kiterrors.NewContainerError(kiterrors.CodeUnknownVariable,
			fmt.Sprintf("no variable named %s", name))
	}
	delete(c.vars, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Append extends the epoch and every record-varying variable with the rows
// of other. Both containers must carry the same record-varying variables;
// this container's metadata is kept.
func (c *Container) Append(other *Container) error {
	for _, name := range c.order {
		v := c.vars[name]
		if !v.RecordVarying {
			continue
		}
		ov, ok := other.vars[name]
		if !ok {
			return kiterrors.NewContainerError(kiterrors.CodeUnknownVariable,
				fmt.Sprintf("appended container is missing variable %s", name))
		}
		if ov.Data.Kind() != v.Data.Kind() {
			return kiterrors.NewContainerError(kiterrors.CodeLengthMismatch,
				fmt.Sprintf("variable %s changes element kind between containers", name))
		}
	}

	for _, name := range c.order {
		v := c.vars[name]
		if !v.RecordVarying {
			continue
		}
		merged, err := concatArrays(v.Data, other.vars[name].Data)
		if err != nil {
			return kiterrors.NewContainerError(kiterrors.CodeLengthMismatch,
				fmt.Sprintf("variable %s: %v", name, err))
		}
		v.Data = merged
	}
	c.epoch = append(c.epoch, other.epoch...)
	return nil
}

// DeriveMetadata runs the schema's derivation pass over the global
// attributes, the epoch variable, and every variable. Failed derivations
// are logged and returned; the remaining attributes are still filled.
func (c *Container) DeriveMetadata() []error {
	derived, failures := c.schema.DeriveGlobal(c)
	c.schema.ApplyGlobal(c.meta, derived)

	epochVar := schema.Variable{
		Name:    c.epochName,
		Data:    types.Times(c.epoch...),
		Meta:    c.epochMeta,
		IsEpoch: true,
	}
	derived, errs := c.schema.DeriveVariable(epochVar, types.CDFTimeTT2000, types.RoleSupportData)
	failures = append(failures, errs...)
	c.schema.ApplyVariable(c.epochMeta, derived)

	for _, name := range c.order {
		v := c.vars[name]
		sv := schema.Variable{
			Name:  v.Name,
			Data:  v.Data,
			Meta:  v.Meta,
			Units: v.Units,
			Epoch: c.epochName,
			WCS:   v.WCS,
		}
		derived, errs := c.schema.DeriveVariable(sv, v.Data.GuessType(), c.RoleOf(v))
		failures = append(failures, errs...)
		c.schema.ApplyVariable(v.Meta, derived)
	}
	return failures
}

// RoleOf determines a variable's role: its VAR_TYPE attribute when set, the
// shape of the data otherwise.
func (c *Container) RoleOf(v *Variable) types.Role {
	if s, ok := v.Meta.Value("VAR_TYPE").(string); ok {
		if role, err := types.ParseRole(s); err == nil {
			return role
		}
	}
	if !v.RecordVarying {
		if v.Data.Kind() == types.KindString {
			return types.RoleMetadata
		}
		return types.RoleSupportData
	}
	return types.RoleData
}

// Save derives the remaining metadata, names the file after the
// Logical_file_id attribute, and writes it into dir. It returns the full
// path of the written file.
func (c *Container) Save(dir string) (string, error) {
	for _, err := range c.DeriveMetadata() {
		c.log.Warn().Err(err).Msg("derivation incomplete before save")
	}

	fileID, _ := c.meta.Value("Logical_file_id").(string)
	if fileID == "" {
		return "", kiterrors.NewContainerError(kiterrors.CodeUnknownVariable,
			"cannot name the output file: Logical_file_id is not set and could not be derived")
	}
	ext := c.schema.Mission().FileExtension
	path := filepath.Join(dir, fileID+ext)

	if err := cdfio.Write(path, c.toFile()); err != nil {
		return "", err
	}
	c.log.Info().Str("path", path).Int("records", c.Len()).Msg("container written")
	return path, nil
}

// Load reads a container file written by Save. A nil schema selects the
// mission default.
func Load(path string, s *schema.Schema) (*Container, error) {
	f, err := cdfio.Read(path)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = schema.NewDefault()
	}

	c := &Container{
		schema:    s,
		epochName: f.EpochName,
		epoch:     f.Epoch,
		epochMeta: f.EpochMeta,
		vars:      make(map[string]*Variable),
		meta:      f.Global,
	}
	for _, fv := range f.Variables {
		v := &Variable{
			Name:          fv.Name,
			Data:          fv.Data,
			Meta:          fv.Meta,
			Units:         fv.Units,
			RecordVarying: fv.RecordVarying,
			WCS:           fv.WCS,
		}
		c.order = append(c.order, v.Name)
		c.vars[v.Name] = v
	}
	return c, nil
}

func (c *Container) checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return kiterrors.NewContainerError(kiterrors.CodeDuplicateName,
			"variable name must not be empty")
	}
	if name == c.epochName {
		return kiterrors.NewContainerError(kiterrors.CodeDuplicateName,
			fmt.Sprintf("variable name %s is reserved for the epoch column", name))
	}
	if _, ok := c.vars[name]; ok {
		return kiterrors.NewContainerError(kiterrors.CodeDuplicateName,
			fmt.Sprintf("a variable named %s already exists", name))
	}
	return nil
}

func (c *Container) insert(v *Variable) {
	c.order = append(c.order, v.Name)
	c.vars[v.Name] = v
}

// seedVariableMeta layers the caller's attributes over the required
// attribute template, with the role recorded as VAR_TYPE unless the caller
// chose one.
func (c *Container) seedVariableMeta(meta *types.Metadata, role string) *types.Metadata {
	seeded := c.schema.MeasurementTemplate()
	seeded.Set("VAR_TYPE", role)
	seeded.Update(meta)
	return seeded
}

func (c *Container) toFile() *cdfio.File {
	f := &cdfio.File{
		Global:    c.meta,
		EpochName: c.epochName,
		Epoch:     c.epoch,
		EpochMeta: c.epochMeta,
	}
	for _, name := range c.order {
		v := c.vars[name]
		f.Variables = append(f.Variables, cdfio.Variable{
			Name:          v.Name,
			Data:          v.Data,
			Meta:          v.Meta,
			Units:         v.Units,
			RecordVarying: v.RecordVarying,
			WCS:           v.WCS,
		})
	}
	return f
}

// concatArrays joins two arrays along the record dimension.
func concatArrays(a, b types.Array) (types.Array, error) {
	if a.NDim() != b.NDim() {
		return types.Array{}, fmt.Errorf("dimension count changes from %d to %d", a.NDim(), b.NDim())
	}
	for i := 1; i < a.NDim(); i++ {
		if a.Shape()[i] != b.Shape()[i] {
			return types.Array{}, fmt.Errorf("non-record dimension %d changes from %d to %d",
				i, a.Shape()[i], b.Shape()[i])
		}
	}
	shape := make([]int, a.NDim())
	copy(shape, a.Shape())
	shape[0] = a.Len() + b.Len()

	switch a.Kind() {
	case types.KindInt:
		merged := make([]int64, 0, a.Size()+b.Size())
		merged = append(merged, a.IntSlice()...)
		merged = append(merged, b.IntSlice()...)
		return types.IntsShaped(shape, merged), nil
	case types.KindFloat:
		merged := make([]float64, 0, a.Size()+b.Size())
		merged = append(merged, a.FloatSlice()...)
		merged = append(merged, b.FloatSlice()...)
		return types.FloatsShaped(shape, merged), nil
	case types.KindString:
		merged := make([]string, 0, a.Size()+b.Size())
		merged = append(merged, a.StringSlice()...)
		merged = append(merged, b.StringSlice()...)
		return types.Strings(merged...), nil
	case types.KindTime:
		merged := make([]time.Time, 0, a.Size()+b.Size())
		merged = append(merged, a.TimeSlice()...)
		merged = append(merged, b.TimeSlice()...)
		return types.Times(merged...), nil
	}
	return types.Array{}, fmt.Errorf("unsupported element kind")
}
