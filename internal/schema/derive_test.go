package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swxlab/swxkit/pkg/types"
)

type fakeData struct {
	meta  *types.Metadata
	epoch []time.Time
}

func (f *fakeData) GlobalMeta() *types.Metadata { return f.meta }
func (f *fakeData) EpochTimes() []time.Time     { return f.epoch }

func sampleData(t *testing.T) *fakeData {
	t.Helper()
	s := NewDefault()
	meta, err := s.GlobalTemplate("eea", "l1", "0.1.0")
	require.NoError(t, err)
	return &fakeData{
		meta: meta,
		epoch: []time.Time{
			time.Date(2024, 4, 6, 12, 6, 21, 0, time.UTC),
			time.Date(2024, 4, 6, 12, 6, 24, 0, time.UTC),
		},
	}
}

func TestDeriveGlobal(t *testing.T) {
	s := NewDefault()
	data := sampleData(t)

	derived, failures := s.DeriveGlobal(data)
	assert.Empty(t, failures)

	assert.Equal(t, "swxsoc_eea_l1_20240406T120621_v0.1.0", derived.Value("Logical_file_id"))
	assert.Equal(t, "l1>Level 1", derived.Value("Data_type"))
	assert.Equal(t, "swxsoc_eea_l1", derived.Value("Logical_source"))
	assert.Equal(t, "swxsoc Electron Electrostatic Analyzer Level 1",
		derived.Value("Logical_source_description"))
	assert.Equal(t, "2024-04-06T12:06:21.000", derived.Value("Start_time"))
	assert.NotEmpty(t, derived.Value("Generation_date"))
}

func TestDeriveGlobalFailuresAreIsolated(t *testing.T) {
	s := NewDefault()
	// No Data_level means the filename cannot be built.
	data := &fakeData{
		meta:  types.NewMetadata(),
		epoch: []time.Time{time.Date(2024, 4, 6, 12, 6, 21, 0, time.UTC)},
	}
	data.meta.Set("Descriptor", "EEA>Electron Electrostatic Analyzer")

	derived, failures := s.DeriveGlobal(data)
	assert.NotEmpty(t, failures)
	// Independent derivations still ran.
	assert.Equal(t, "2024-04-06T12:06:21.000", derived.Value("Start_time"))
	assert.False(t, derived.Has("Logical_file_id"))
}

func TestDeriveEpochVariable(t *testing.T) {
	s := NewDefault()
	epoch := types.Times(
		time.Date(2016, 3, 22, 12, 30, 31, 0, time.UTC),
		time.Date(2016, 3, 22, 12, 30, 34, 0, time.UTC),
	)
	v := Variable{
		Name:    "Epoch",
		Data:    epoch,
		Meta:    types.NewMetadata(),
		IsEpoch: true,
	}

	derived, failures := s.DeriveVariable(v, types.CDFTimeTT2000, types.RoleData)
	assert.Empty(t, failures)

	assert.Equal(t, "Epoch", derived.Value("FIELDNAM"))
	assert.Equal(t, "ns", derived.Value("UNITS"))
	assert.Equal(t, "J2000", derived.Value("TIME_BASE"))
	assert.Equal(t, "Terrestrial Time (TT)", derived.Value("TIME_SCALE"))
	assert.Equal(t, "rotating Earth geoid", derived.Value("REFERENCE_POSITION"))
	assert.Equal(t, "3s", derived.Value("RESOLUTION"))
	assert.Equal(t, types.TimeFill, derived.Value("FILLVAL"))
	assert.Equal(t, types.TimeMin, derived.Value("VALIDMIN"))
	assert.Equal(t, types.TimeMax, derived.Value("VALIDMAX"))
	assert.Equal(t, "A29", derived.Value("FORMAT"))
}

func TestDeriveDataVariable(t *testing.T) {
	s := NewDefault()
	v := Variable{
		Name:  "Bx",
		Data:  types.Ints(1, 2, 3),
		Meta:  types.NewMetadata(),
		Units: "nT",
		Epoch: "Epoch",
	}

	derived, failures := s.DeriveVariable(v, types.CDFInt2, types.RoleData)
	assert.Empty(t, failures)

	assert.Equal(t, "Epoch", derived.Value("DEPEND_0"))
	assert.Equal(t, "time_series", derived.Value("DISPLAY_TYPE"))
	assert.Equal(t, "Bx", derived.Value("FIELDNAM"))
	assert.Equal(t, "Bx [nT]", derived.Value("LABLAXIS"))
	assert.Equal(t, "nT", derived.Value("UNITS"))
	assert.Equal(t, "1.0>nT", derived.Value("SI_CONVERSION"))
	assert.Equal(t, int64(-32768), derived.Value("FILLVAL"))
	assert.Equal(t, int64(-32768), derived.Value("VALIDMIN"))
	assert.Equal(t, int64(32767), derived.Value("VALIDMAX"))
	assert.Equal(t, "I6", derived.Value("FORMAT"))

	// Epoch and spectra attributes stay out of a plain data variable.
	assert.False(t, derived.Has("TIME_BASE"))
	assert.False(t, derived.Has("WCSAXES"))
}

func TestDeriveSupportVariableSkipsDependencies(t *testing.T) {
	s := NewDefault()
	v := Variable{
		Name: "calibration",
		Data: types.Floats(1.5, 2.5),
		Meta: types.NewMetadata(),
	}

	derived, failures := s.DeriveVariable(v, types.CDFDouble, types.RoleSupportData)
	assert.Empty(t, failures)
	assert.False(t, derived.Has("DEPEND_0"))
	assert.False(t, derived.Has("DISPLAY_TYPE"))
	assert.Equal(t, "G10.8E3", derived.Value("FORMAT"))
}

func TestDeriveSpectraFansOutPerDimension(t *testing.T) {
	s := NewDefault()
	wcs := types.NewWCS(2)
	wcs.CUnit[1] = "eV"
	v := Variable{
		Name:  "test_spectra",
		Data:  types.FloatsShaped([]int{3, 4}, make([]float64, 12)),
		Meta:  types.NewMetadata(),
		Epoch: "Epoch",
		WCS:   wcs,
	}

	derived, failures := s.DeriveVariable(v, types.CDFDouble, types.RoleData)
	assert.Empty(t, failures)

	assert.Equal(t, 2, derived.Value("WCSAXES"))
	for _, root := range []string{"CNAME", "CTYPE", "CUNIT", "CRPIX", "CRVAL", "CDELT"} {
		assert.True(t, derived.Has(root+"1"), "missing %s1", root)
		assert.True(t, derived.Has(root+"2"), "missing %s2", root)
		assert.False(t, derived.Has(root+"3"), "unexpected %s3", root)
	}
	assert.Equal(t, types.DefaultCName, derived.Value("CNAME1"))
	assert.Equal(t, "eV", derived.Value("CUNIT2"))

	// One-based keys appear in ascending dimension order.
	keys := derived.Keys()
	i1, i2 := indexOf(keys, "CNAME1"), indexOf(keys, "CNAME2")
	assert.True(t, i1 >= 0 && i2 > i1)
}

func TestFormatLadder(t *testing.T) {
	meta := types.NewMetadata()
	meta.Set("VALIDMIN", 0.0)
	meta.Set("VALIDMAX", 10.0)
	v := Variable{Name: "f", Data: types.Floats(1), Meta: meta}

	format, err := deriveFormat(v, types.CDFDouble, -1)
	require.NoError(t, err)
	assert.Equal(t, "F6.3", format)

	meta.Set("VALIDMAX", 100.0)
	format, err = deriveFormat(v, types.CDFDouble, -1)
	require.NoError(t, err)
	assert.Equal(t, "F6.2", format)

	meta.Set("VALIDMAX", 1000.0)
	format, err = deriveFormat(v, types.CDFDouble, -1)
	require.NoError(t, err)
	assert.Equal(t, "F6.1", format)

	str := Variable{Name: "s", Data: types.Strings("abcdef"), Meta: types.NewMetadata()}
	format, err = deriveFormat(str, types.CDFChar, -1)
	require.NoError(t, err)
	assert.Equal(t, "A6", format)
}

func indexOf(haystack []string, needle string) int {
	for i, s := range haystack {
		if s == needle {
			return i
		}
	}
	return -1
}
