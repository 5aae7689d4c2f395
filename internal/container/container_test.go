package container

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kiterrors "github.com/swxlab/swxkit/internal/errors"
	"github.com/swxlab/swxkit/pkg/types"
)

func epochSamples(n int) []time.Time {
	start := time.Date(2024, 4, 6, 12, 6, 21, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * 3 * time.Second)
	}
	return out
}

func newContainer(t *testing.T, n int) *Container {
	t.Helper()
	meta := types.NewMetadata()
	meta.Set("Descriptor", "EEA>Electron Electrostatic Analyzer")
	meta.Set("Data_level", "L1>Level 1")
	meta.Set("Data_version", "0.1.0")

	c, err := New(Options{Epoch: epochSamples(n), Meta: meta})
	require.NoError(t, err)
	return c
}

func TestNewRequiresEpoch(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.Equal(t, kiterrors.CodeMissingEpoch, kiterrors.GetCode(err))
}

func TestNewSeedsGlobalAttributes(t *testing.T) {
	c := newContainer(t, 2)

	// Required attributes appear even when unset, supplied values win.
	assert.True(t, c.GlobalMeta().Has("Project"))
	assert.Nil(t, c.GlobalMeta().Value("Project"))
	assert.Equal(t, "0.1.0", c.GlobalMeta().Value("Data_version"))
}

func TestAddMeasurementChecksShape(t *testing.T) {
	c := newContainer(t, 3)

	err := c.AddMeasurement("Bx", types.Ints(1, 2), "nT", nil)
	require.Error(t, err)
	assert.Equal(t, kiterrors.CodeLengthMismatch, kiterrors.GetCode(err))

	err = c.AddMeasurement("Bx", types.IntsShaped([]int{3, 1}, []int64{1, 2, 3}), "nT", nil)
	require.Error(t, err, "multi-dimensional data belongs in AddSpectra")

	require.NoError(t, c.AddMeasurement("Bx", types.Ints(1, 2, 3), "nT", nil))

	err = c.AddMeasurement("Bx", types.Ints(4, 5, 6), "nT", nil)
	require.Error(t, err)
	assert.Equal(t, kiterrors.CodeDuplicateName, kiterrors.GetCode(err))

	err = c.AddMeasurement("Epoch", types.Ints(1, 2, 3), "", nil)
	require.Error(t, err, "the epoch name is reserved")
}

func TestRoleDetermination(t *testing.T) {
	c := newContainer(t, 2)
	require.NoError(t, c.AddMeasurement("Bx", types.Ints(1, 2), "nT", nil))
	require.NoError(t, c.AddSupport("cal", types.Floats(1.5), nil))
	require.NoError(t, c.AddSupport("labels", types.Strings("low"), nil))

	bx, _ := c.Variable("Bx")
	assert.Equal(t, types.RoleData, c.RoleOf(bx))
	cal, _ := c.Variable("cal")
	assert.Equal(t, types.RoleSupportData, c.RoleOf(cal))
	labels, _ := c.Variable("labels")
	assert.Equal(t, types.RoleMetadata, c.RoleOf(labels))

	// An explicit VAR_TYPE wins over the shape heuristic.
	explicit := types.NewMetadata()
	explicit.Set("VAR_TYPE", "support_data")
	require.NoError(t, c.AddMeasurement("By", types.Ints(3, 4), "nT", explicit))
	by, _ := c.Variable("By")
	assert.Equal(t, types.RoleSupportData, c.RoleOf(by))
}

func TestDeriveMetadataFillsVariables(t *testing.T) {
	c := newContainer(t, 2)
	require.NoError(t, c.AddMeasurement("Bx", types.Ints(1, 2), "nT", nil))

	failures := c.DeriveMetadata()
	assert.Empty(t, failures)

	assert.Equal(t, "swxsoc_eea_l1_20240406T120621_v0.1.0",
		c.GlobalMeta().Value("Logical_file_id"))

	assert.Equal(t, "J2000", c.EpochMeta().Value("TIME_BASE"))
	assert.Equal(t, "3s", c.EpochMeta().Value("RESOLUTION"))

	bx, _ := c.Variable("Bx")
	assert.Equal(t, "Epoch", bx.Meta.Value("DEPEND_0"))
	assert.Equal(t, "Bx [nT]", bx.Meta.Value("LABLAXIS"))
	assert.NotNil(t, bx.Meta.Value("FILLVAL"))
}

func TestAppendExtendsRecords(t *testing.T) {
	a := newContainer(t, 2)
	require.NoError(t, a.AddMeasurement("Bx", types.Ints(1, 2), "nT", nil))
	require.NoError(t, a.AddSupport("cal", types.Floats(1.5), nil))

	b := newContainer(t, 3)
	require.NoError(t, b.AddMeasurement("Bx", types.Ints(3, 4, 5), "nT", nil))

	require.NoError(t, a.Append(b))
	assert.Equal(t, 5, a.Len())

	bx, _ := a.Variable("Bx")
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, bx.Data.IntSlice())

	// Support variables do not grow.
	cal, _ := a.Variable("cal")
	assert.Equal(t, 1, cal.Data.Len())

	start, end := a.TimeRange()
	assert.Equal(t, epochSamples(2)[0], start)
	assert.Equal(t, epochSamples(3)[2], end)
}

func TestAppendRejectsMismatchedVariables(t *testing.T) {
	a := newContainer(t, 1)
	require.NoError(t, a.AddMeasurement("Bx", types.Ints(1), "nT", nil))

	b := newContainer(t, 1)
	err := a.Append(b)
	require.Error(t, err)
	assert.Equal(t, kiterrors.CodeUnknownVariable, kiterrors.GetCode(err))

	c := newContainer(t, 1)
	require.NoError(t, c.AddMeasurement("Bx", types.Floats(1), "nT", nil))
	err = a.Append(c)
	require.Error(t, err)
	assert.Equal(t, kiterrors.CodeLengthMismatch, kiterrors.GetCode(err))
}

func TestRemove(t *testing.T) {
	c := newContainer(t, 1)
	require.NoError(t, c.AddMeasurement("Bx", types.Ints(1), "nT", nil))
	require.NoError(t, c.Remove("Bx"))
	assert.Empty(t, c.Names())

	err := c.Remove("Bx")
	require.Error(t, err)
	assert.Equal(t, kiterrors.CodeUnknownVariable, kiterrors.GetCode(err))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c := newContainer(t, 2)
	require.NoError(t, c.AddMeasurement("Bx", types.Ints(1, 2), "nT", nil))
	require.NoError(t, c.AddSpectra("spec",
		types.FloatsShaped([]int{2, 4}, make([]float64, 8)), "counts", nil, nil))

	path, err := c.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, "swxsoc_eea_l1_20240406T120621_v0.1.0.cdf", pathBase(path))

	loaded, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, c.Len(), loaded.Len())
	assert.Equal(t, c.Names(), loaded.Names())
	assert.Equal(t, c.GlobalMeta().Value("Logical_file_id"),
		loaded.GlobalMeta().Value("Logical_file_id"))

	spec, ok := loaded.Variable("spec")
	require.True(t, ok)
	require.NotNil(t, spec.WCS)
	assert.Equal(t, 2, spec.WCS.NAxis())
	assert.Equal(t, []int{2, 4}, spec.Data.Shape())
}

func TestSaveWithoutIdentityFails(t *testing.T) {
	c, err := New(Options{Epoch: epochSamples(1)})
	require.NoError(t, err)

	_, err = c.Save(t.TempDir())
	require.Error(t, err)

	var kerr *kiterrors.KitError
	require.True(t, errors.As(err, &kerr))
	assert.Equal(t, kiterrors.ErrCategoryContainer, kerr.Category)
}

func pathBase(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
