// Package filename creates and parses science data filenames. The format is
//
//	{mission}_{inst}_{mode}_{level}{test}_{descriptor}_{time}_v{version}{ext}
//
// with empty optional fields collapsed, which is why underscores are not
// allowed inside any single field.
package filename

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/swxlab/swxkit/internal/config"
)

// TimeFormat is the timestamp layout used in science filenames.
const TimeFormat = "20060102T150405"

// TimeFormatL0 is the day-of-year layout used in raw telemetry filenames.
const TimeFormatL0 = "2006002-150405"

// ValidDataLevels lists the data levels science filenames can carry, in
// processing order. Level l0 is reserved for raw telemetry files.
var ValidDataLevels = []string{"l0", "l1", "ql", "l2", "l3", "l4"}

// Fields holds the properties parsed from a science filename.
type Fields struct {
	Instrument string
	Mode       string
	Test       bool
	Time       time.Time
	Level      string
	Version    string
	Descriptor string
}

// Create returns a compliant science filename for data level l1 and above.
func Create(mission config.Mission, instrument string, t time.Time,
	level, version, mode, descriptor string, test bool) (string, error) {

	inst, ok := mission.Instrument(instrument)
	if !ok {
		return "", fmt.Errorf("instrument %q is not recognized, must be one of %v",
			instrument, mission.InstrumentNames())
	}
	if !validScienceLevel(level) {
		return "", fmt.Errorf("level %q is not recognized, must be one of %v",
			level, ValidDataLevels[1:])
	}
	if err := checkVersion(version); err != nil {
		return "", err
	}
	if strings.Contains(mode, "_") || strings.Contains(descriptor, "_") {
		return "", fmt.Errorf("the underscore symbol _ is not allowed in mode or descriptor")
	}

	testStr := ""
	if test {
		testStr = "test"
	}

	name := strings.Join([]string{
		mission.Name,
		inst.ShortName,
		mode,
		level + testStr,
		descriptor,
		t.Format(TimeFormat),
		"v" + version,
	}, "_")
	// Empty optional fields leave double underscores behind.
	name = strings.ReplaceAll(name, "__", "_")

	return name + mission.FileExtension, nil
}

// Parse extracts the constituent properties from a science or raw
// telemetry filename.
func Parse(mission config.Mission, path string) (Fields, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	parts := strings.Split(stem, "_")

	if len(parts) < 2 || parts[0] != mission.Name {
		return Fields{}, fmt.Errorf("file %s not recognized, not a valid mission name", base)
	}

	switch ext {
	case ".bin":
		return parseRaw(mission, base, parts)
	case mission.FileExtension:
		return parseScience(mission, base, parts)
	}
	return Fields{}, fmt.Errorf("file extension %s not recognized", ext)
}

func parseScience(mission config.Mission, base string, parts []string) (Fields, error) {
	inst, ok := mission.Instrument(parts[1])
	if !ok {
		return Fields{}, fmt.Errorf("file %s not recognized, not a valid instrument name", base)
	}
	if len(parts) < 5 {
		return Fields{}, fmt.Errorf("file %s not recognized, too few fields", base)
	}

	t, err := time.Parse(TimeFormat, parts[len(parts)-2])
	if err != nil {
		return Fields{}, fmt.Errorf("file %s has an invalid timestamp: %w", base, err)
	}

	fields := Fields{
		Instrument: inst.Name,
		Time:       t,
		Version:    strings.TrimPrefix(parts[len(parts)-1], "v"),
	}

	// Mode and descriptor are optional: when the third field is not a data
	// level it is the mode and the level follows it.
	if !isLevelField(parts[2]) {
		fields.Mode = parts[2]
		fields.Level, fields.Test = splitTest(parts[3])
		if len(parts) == 7 {
			fields.Descriptor = parts[4]
		}
	} else {
		fields.Level, fields.Test = splitTest(parts[2])
		if len(parts) == 6 {
			fields.Descriptor = parts[3]
		}
	}
	return fields, nil
}

func parseRaw(mission config.Mission, base string, parts []string) (Fields, error) {
	inst, ok := mission.Instrument(parts[1])
	if !ok {
		return Fields{}, fmt.Errorf("file %s not recognized, not a valid target name", base)
	}

	// A mode field shifts the level and time fields right by one.
	offset := 0
	if len(parts) > 5 {
		offset = 1
	}
	fields := Fields{Instrument: inst.Name}
	if offset == 1 {
		fields.Mode = parts[2]
	}
	if parts[2+offset] != ValidDataLevels[0] {
		return Fields{}, fmt.Errorf("data level %s is not correct for this file extension",
			parts[2+offset])
	}
	fields.Level = parts[2+offset]

	t, err := time.Parse(TimeFormatL0, parts[3+offset])
	if err != nil {
		return Fields{}, fmt.Errorf("file %s has an invalid timestamp: %w", base, err)
	}
	fields.Time = t
	fields.Version = strings.TrimPrefix(parts[len(parts)-1], "v")
	return fields, nil
}

func validScienceLevel(level string) bool {
	for _, l := range ValidDataLevels[1:] {
		if l == level {
			return true
		}
	}
	return false
}

func isLevelField(field string) bool {
	if len(field) < 2 {
		return false
	}
	for _, l := range ValidDataLevels {
		if field[:2] == l {
			return true
		}
	}
	return false
}

func splitTest(field string) (string, bool) {
	if strings.Contains(field, "test") {
		return strings.Replace(field, "test", "", 1), true
	}
	return field, false
}

func checkVersion(version string) error {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return fmt.Errorf("version %q is not formatted correctly, should be X.Y.Z", version)
	}
	for _, part := range parts {
		if _, err := strconv.Atoi(part); err != nil {
			return fmt.Errorf("version %q is not all integers", version)
		}
	}
	return nil
}
