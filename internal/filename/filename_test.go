package filename

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swxlab/swxkit/internal/config"
)

var sampleTime = time.Date(2024, 4, 6, 12, 6, 21, 0, time.UTC)

func mission(t *testing.T) config.Mission {
	t.Helper()
	return config.Default().Mission
}

func TestCreate(t *testing.T) {
	cases := []struct {
		instrument string
		level      string
		version    string
		mode       string
		descriptor string
		test       bool
		want       string
	}{
		{"eea", "l1", "1.2.3", "", "", false,
			"swxsoc_eea_l1_20240406T120621_v1.2.3.cdf"},
		{"merit", "l2", "2.4.5", "", "", false,
			"swxsoc_mrt_l2_20240406T120621_v2.4.5.cdf"},
		{"nemisis", "l2", "1.3.5", "", "", false,
			"swxsoc_nem_l2_20240406T120621_v1.3.5.cdf"},
		{"spani", "l3", "2.4.5", "", "", false,
			"swxsoc_spn_l3_20240406T120621_v2.4.5.cdf"},
		{"eea", "l3", "2.4.5", "2s", "burst", false,
			"swxsoc_eea_2s_l3_burst_20240406T120621_v2.4.5.cdf"},
		{"eea", "l1", "1.2.3", "", "", true,
			"swxsoc_eea_l1test_20240406T120621_v1.2.3.cdf"},
		{"eea", "ql", "0.0.1", "", "", false,
			"swxsoc_eea_ql_20240406T120621_v0.0.1.cdf"},
	}
	for _, tc := range cases {
		got, err := Create(mission(t), tc.instrument, sampleTime,
			tc.level, tc.version, tc.mode, tc.descriptor, tc.test)
		require.NoError(t, err, tc.want)
		assert.Equal(t, tc.want, got)
	}
}

func TestCreateRejectsInvalidFields(t *testing.T) {
	m := mission(t)

	_, err := Create(m, "potato", sampleTime, "l1", "1.2.3", "", "", false)
	assert.Error(t, err, "unknown instrument")

	_, err = Create(m, "eea", sampleTime, "l0", "1.2.3", "", "", false)
	assert.Error(t, err, "l0 is reserved for raw telemetry")

	_, err = Create(m, "eea", sampleTime, "l5", "1.2.3", "", "", false)
	assert.Error(t, err, "unknown level")

	_, err = Create(m, "eea", sampleTime, "l1", "1.3", "", "", false)
	assert.Error(t, err, "version needs three parts")

	_, err = Create(m, "eea", sampleTime, "l1", "1.b.3", "", "", false)
	assert.Error(t, err, "version parts must be integers")

	_, err = Create(m, "eea", sampleTime, "l1", "1.2.3", "a_b", "", false)
	assert.Error(t, err, "underscores in mode")

	_, err = Create(m, "eea", sampleTime, "l1", "1.2.3", "", "a_b", false)
	assert.Error(t, err, "underscores in descriptor")
}

func TestParseScience(t *testing.T) {
	cases := []struct {
		path string
		want Fields
	}{
		{"swxsoc_eea_l1_20240406T120621_v1.2.3.cdf",
			Fields{Instrument: "eea", Level: "l1", Time: sampleTime, Version: "1.2.3"}},
		{"swxsoc_mrt_l2_20240406T120621_v2.4.5.cdf",
			Fields{Instrument: "merit", Level: "l2", Time: sampleTime, Version: "2.4.5"}},
		{"swxsoc_eea_2s_l3_burst_20240406T120621_v2.4.5.cdf",
			Fields{Instrument: "eea", Mode: "2s", Level: "l3", Descriptor: "burst",
				Time: sampleTime, Version: "2.4.5"}},
		{"swxsoc_eea_l1test_20240406T120621_v1.2.3.cdf",
			Fields{Instrument: "eea", Level: "l1", Test: true, Time: sampleTime,
				Version: "1.2.3"}},
		{"/data/incoming/swxsoc_spn_l3_20240406T120621_v2.4.5.cdf",
			Fields{Instrument: "spani", Level: "l3", Time: sampleTime, Version: "2.4.5"}},
	}
	for _, tc := range cases {
		got, err := Parse(mission(t), tc.path)
		require.NoError(t, err, tc.path)
		assert.Equal(t, tc.want, got, tc.path)
	}
}

func TestParseRaw(t *testing.T) {
	m := mission(t)
	rawTime := time.Date(2024, 4, 6, 12, 6, 21, 0, time.UTC)

	got, err := Parse(m, "swxsoc_EEA_l0_2024097-120621_v01.bin")
	require.NoError(t, err)
	assert.Equal(t, "eea", got.Instrument)
	assert.Equal(t, "l0", got.Level)
	assert.Equal(t, rawTime, got.Time)
	assert.Equal(t, "01", got.Version)

	got, err = Parse(m, "swxsoc_MERIT_1s_l0_2024097-120621_v01.bin")
	require.NoError(t, err)
	assert.Equal(t, "merit", got.Instrument)
	assert.Equal(t, "1s", got.Mode)

	_, err = Parse(m, "swxsoc_EEA_l1_2024097-120621_v01.bin")
	assert.Error(t, err, "only l0 files carry the raw extension")
}

func TestParseRejectsForeignFiles(t *testing.T) {
	m := mission(t)

	_, err := Parse(m, "othermission_eea_l1_20240406T120621_v1.2.3.cdf")
	assert.Error(t, err, "foreign mission name")

	_, err = Parse(m, "swxsoc_unknown_l1_20240406T120621_v1.2.3.cdf")
	assert.Error(t, err, "unknown instrument")

	_, err = Parse(m, "swxsoc_eea_l1_20240406T120621_v1.2.3.txt")
	assert.Error(t, err, "unknown extension")
}

func TestCreateParseRoundTrip(t *testing.T) {
	m := mission(t)
	for _, inst := range m.InstrumentNames() {
		name, err := Create(m, inst, sampleTime, "l2", "1.0.0", "", "", false)
		require.NoError(t, err)

		fields, err := Parse(m, name)
		require.NoError(t, err)
		assert.Equal(t, inst, fields.Instrument)
		assert.Equal(t, "l2", fields.Level)
		assert.Equal(t, sampleTime, fields.Time)
		assert.Equal(t, "1.0.0", fields.Version)
	}
}
