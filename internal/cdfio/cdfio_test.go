package cdfio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swxlab/swxkit/internal/errors"
	"github.com/swxlab/swxkit/pkg/types"
)

func sampleFile() *File {
	global := types.NewMetadata()
	global.Set("Mission_group", "swxsoc")
	global.Set("Data_version", "0.1.0")
	global.Set("Generation_count", int64(3))
	global.Set("Calibration_offset", 1.25)
	global.Set("Project", nil)

	epochMeta := types.NewMetadata()
	epochMeta.Set("VAR_TYPE", "support_data")
	epochMeta.Set("FILLVAL", types.TimeFill)

	bxMeta := types.NewMetadata()
	bxMeta.Set("CATDESC", "Magnetic field, x component")
	bxMeta.Set("VALIDMIN", int64(-100))
	bxMeta.Set("VALIDMAX", int64(100))

	spectraMeta := types.NewMetadata()
	spectraMeta.Set("CATDESC", "Test spectra")

	return &File{
		Global:    global,
		EpochName: "Epoch",
		Epoch: []time.Time{
			time.Date(2024, 4, 6, 12, 6, 21, 0, time.UTC),
			time.Date(2024, 4, 6, 12, 6, 24, 0, time.UTC),
		},
		EpochMeta: epochMeta,
		Variables: []Variable{
			{
				Name:          "Bx",
				Data:          types.Ints(12, -7),
				Meta:          bxMeta,
				Units:         "nT",
				RecordVarying: true,
			},
			{
				Name:          "spectra",
				Data:          types.FloatsShaped([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6}),
				Meta:          spectraMeta,
				RecordVarying: true,
				WCS:           types.NewWCS(2),
			},
			{
				Name: "labels",
				Data: types.Strings("low", "high"),
				Meta: types.NewMetadata(),
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.cdf")
	original := sampleFile()

	require.NoError(t, Write(path, original))
	loaded, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, original.EpochName, loaded.EpochName)
	assert.Equal(t, original.Epoch, loaded.Epoch)

	// Attribute order and concrete value types survive.
	assert.Equal(t, original.Global.Keys(), loaded.Global.Keys())
	assert.Equal(t, int64(3), loaded.Global.Value("Generation_count"))
	assert.Equal(t, 1.25, loaded.Global.Value("Calibration_offset"))
	assert.True(t, loaded.Global.Has("Project"))
	assert.Nil(t, loaded.Global.Value("Project"))
	assert.Equal(t, types.TimeFill, loaded.EpochMeta.Value("FILLVAL"))

	require.Len(t, loaded.Variables, 3)
	for i, want := range original.Variables {
		got := loaded.Variables[i]
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Units, got.Units)
		assert.Equal(t, want.RecordVarying, got.RecordVarying)
		assert.Equal(t, want.Data, got.Data, want.Name)
		assert.Equal(t, want.Meta.Keys(), got.Meta.Keys())
		for _, key := range want.Meta.Keys() {
			assert.Equal(t, want.Meta.Value(key), got.Meta.Value(key))
		}
	}

	spectra := loaded.Variables[1]
	require.NotNil(t, spectra.WCS)
	assert.Equal(t, 2, spectra.WCS.NAxis())
	assert.Equal(t, []int{2, 3}, spectra.Data.Shape())
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.cdf"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeObjectNotFound, errors.GetCode(err))
}

func TestReadRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.cdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a container"), 0644))

	_, err := Read(path)
	require.Error(t, err)
	assert.Equal(t, errors.CodeCorruptFile, errors.GetCode(err))
}

func TestReadDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.cdf")
	require.NoError(t, Write(path, sampleFile()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a payload byte past the header and the first frame preamble.
	raw[len(raw)/2] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0644))

	_, err = Read(path)
	require.Error(t, err)
	assert.Equal(t, errors.CodeCorruptFile, errors.GetCode(err))
}
