package validation

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swxlab/swxkit/internal/container"
	"github.com/swxlab/swxkit/pkg/types"
)

func testContainer(t *testing.T) *container.Container {
	t.Helper()
	meta := types.NewMetadata()
	meta.Set("Descriptor", "EEA>Electron Electrostatic Analyzer")
	meta.Set("Data_level", "L1>Level 1")
	meta.Set("Data_version", "0.0.1")

	epoch := []time.Time{
		time.Date(2016, 3, 22, 12, 30, 31, 0, time.UTC),
		time.Date(2016, 3, 22, 12, 30, 34, 0, time.UTC),
	}
	c, err := container.New(container.Options{Epoch: epoch, Meta: meta})
	require.NoError(t, err)

	varMeta := types.NewMetadata()
	varMeta.Set("CATDESC", "Test Data")
	require.NoError(t, c.AddMeasurement("measurement", types.Ints(1, 2), "m", varMeta))
	return c
}

func TestMissingGlobalAttrs(t *testing.T) {
	c := testContainer(t)
	require.Empty(t, c.DeriveMetadata())

	violations, err := ValidateContainer(nil, c)
	require.NoError(t, err)
	assert.Contains(t, violations,
		"Required attribute (Mission_group) not present in global attributes.")
	assert.NotContains(t, violations,
		"Required attribute (Descriptor) not present in global attributes.")
}

func TestMissingVarType(t *testing.T) {
	c := testContainer(t)
	require.Empty(t, c.DeriveMetadata())

	v, _ := c.Variable("measurement")
	v.Meta.Delete("VAR_TYPE")

	violations, err := ValidateContainer(nil, c)
	require.NoError(t, err)
	assert.Contains(t, violations,
		"Variable: measurement missing 'VAR_TYPE' attribute. Cannot Validate Variable.")
}

func TestMissingVariableAttrs(t *testing.T) {
	c := testContainer(t)
	require.Empty(t, c.DeriveMetadata())

	v, _ := c.Variable("measurement")
	v.Meta.Delete("CATDESC")
	v.Meta.Delete("UNITS")
	v.Meta.Set("DISPLAY_TYPE", "bad_type")

	violations, err := ValidateContainer(nil, c)
	require.NoError(t, err)
	assert.Contains(t, violations, "Variable: measurement missing 'CATDESC' attribute.")
	assert.Contains(t, violations,
		"Variable: measurement missing 'UNITS' attribute. Alternative: UNIT_PTR not found.")
	assert.Contains(t, violations,
		"Variable: measurement Attribute 'DISPLAY_TYPE' not one of valid options. "+
			"Was bad_type, expected one of time_series time_series>noerrorbars spectrogram stack_plot image")
}

func TestCompliantContainerHasNoViolations(t *testing.T) {
	c := testContainer(t)
	c.GlobalMeta().Set("Discipline", "Space Physics>Magnetospheric Science")
	c.GlobalMeta().Set("Instrument_type", "Electron Electrostatic Analyzer")
	c.GlobalMeta().Set("Mission_group", "swxsoc")
	c.GlobalMeta().Set("PI_affiliation", "SWxSOC")
	c.GlobalMeta().Set("PI_name", "Jane Doe")
	c.GlobalMeta().Set("Project", "STP>Solar Terrestrial Probes")
	c.GlobalMeta().Set("Source_name", "swxsoc>Space Weather Science Operations Center")
	c.GlobalMeta().Set("TEXT", "Test data product.")

	require.Empty(t, c.DeriveMetadata())
	c.EpochMeta().Set("CATDESC", "Epoch Time")

	violations, err := ValidateContainer(nil, c)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestValidateFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.cdf")
	violations := ValidateFile(path, nil)
	require.Len(t, violations, 1)
	assert.Equal(t, "Could not open container file at path: "+path, violations[0])
}

func TestValidateFileRoundTrip(t *testing.T) {
	c := testContainer(t)
	c.GlobalMeta().Set("Mission_group", "swxsoc")

	path, err := c.Save(t.TempDir())
	require.NoError(t, err)

	violations := ValidateFile(path, nil)
	// Attributes never supplied are still reported after the round trip.
	assert.Contains(t, violations,
		"Required attribute (PI_name) not present in global attributes.")
	assert.NotContains(t, violations,
		"Required attribute (Mission_group) not present in global attributes.")
}
