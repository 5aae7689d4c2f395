// Package config provides mission configuration for the swxkit system.
// Missions are described by profiles: the set of instruments they fly,
// the science file extension, and the data levels their pipeline emits.
// A default profile ships embedded in the package; a user file and
// environment variables can override it.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	kiterrors "github.com/swxlab/swxkit/internal/errors"
)

//go:embed data/config.yaml
var defaultConfigYAML []byte

// Environment variables recognized by Load.
const (
	EnvMission    = "SWXKIT_MISSION"
	EnvConfigFile = "SWXKIT_CONFIG"
)

// Config is the resolved process configuration. Treat a loaded Config as
// immutable; reloading produces a fresh value.
type Config struct {
	General         GeneralConfig          `yaml:"general"`
	SelectedMission string                 `yaml:"selected_mission"`
	MissionsData    map[string]MissionData `yaml:"missions_data"`
	Logger          LoggerConfig           `yaml:"logger"`

	// Mission is the profile for SelectedMission, resolved by Load.
	Mission Mission `yaml:"-"`
}

// GeneralConfig holds settings not tied to a mission.
type GeneralConfig struct {
	// TimeFormat is a strftime-style display format carried for
	// compatibility with mission config files.
	TimeFormat string `yaml:"time_format"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// MissionData is the raw per-mission section of a config file.
type MissionData struct {
	FileExtension   string       `yaml:"file_extension"`
	ValidDataLevels []string     `yaml:"valid_data_levels"`
	Instruments     []Instrument `yaml:"instruments"`
}

// Instrument describes one instrument of a mission.
type Instrument struct {
	Name       string `yaml:"name"`
	ShortName  string `yaml:"shortname"`
	FullName   string `yaml:"fullname"`
	TargetName string `yaml:"targetname"`

	// ExtraNames lists additional aliases seen in raw telemetry filenames.
	ExtraNames []string `yaml:"extra_inst_names"`
}

// Mission is the resolved profile of the selected mission.
type Mission struct {
	Name            string
	FileExtension   string
	ValidDataLevels []string
	Instruments     []Instrument
}

// InstrumentNames returns the instrument names in profile order.
func (m Mission) InstrumentNames() []string {
	out := make([]string, len(m.Instruments))
	for i, inst := range m.Instruments {
		out[i] = inst.Name
	}
	return out
}

// Instrument looks up an instrument by name, shortname, targetname, or
// extra alias. Matching is case-insensitive.
func (m Mission) Instrument(name string) (Instrument, bool) {
	lowered := strings.ToLower(name)
	for _, inst := range m.Instruments {
		if lowered == strings.ToLower(inst.Name) ||
			lowered == strings.ToLower(inst.ShortName) ||
			lowered == strings.ToLower(inst.TargetName) {
			return inst, true
		}
		for _, extra := range inst.ExtraNames {
			if lowered == strings.ToLower(extra) {
				return inst, true
			}
		}
	}
	return Instrument{}, false
}

// ValidLevel reports whether level is one of the mission's data levels.
func (m Mission) ValidLevel(level string) bool {
	for _, l := range m.ValidDataLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Default returns the embedded configuration with the default mission
// resolved. It panics only if the embedded file is malformed, which is a
// build defect.
func Default() *Config {
	cfg, err := parse(defaultConfigYAML)
	if err != nil {
		panic(err)
	}
	if err := cfg.resolve(); err != nil {
		panic(err)
	}
	return cfg
}

// Load builds the configuration: embedded defaults, then the user file
// named by SWXKIT_CONFIG (if set), then environment overrides. A .env
// file in the working directory is honored before the environment is
// read.
func Load() (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg, err := parse(defaultConfigYAML)
	if err != nil {
		return nil, err
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		user, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg.merge(user)
	}

	if mission := os.Getenv(EnvMission); mission != "" {
		cfg.SelectedMission = mission
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile parses a mission config file. The result is not resolved;
// it is meant to be merged over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kiterrors.NewConfigError(kiterrors.CodeParseFailed,
			fmt.Sprintf("read config file %s", path), err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, kiterrors.NewConfigError(kiterrors.CodeParseFailed,
			"parse config YAML", err)
	}
	return &cfg, nil
}

// merge overlays the non-empty parts of other onto c. Mission profiles
// replace wholesale under their key.
func (c *Config) merge(other *Config) {
	if other.General.TimeFormat != "" {
		c.General.TimeFormat = other.General.TimeFormat
	}
	if other.SelectedMission != "" {
		c.SelectedMission = other.SelectedMission
	}
	if other.Logger.Level != "" {
		c.Logger = other.Logger
	}
	for name, data := range other.MissionsData {
		if c.MissionsData == nil {
			c.MissionsData = make(map[string]MissionData)
		}
		c.MissionsData[name] = data
	}
}

// resolve fills in c.Mission from the selected mission's profile.
func (c *Config) resolve() error {
	data, ok := c.MissionsData[c.SelectedMission]
	if !ok {
		return kiterrors.NewConfigError(kiterrors.CodeInvalidMission,
			fmt.Sprintf("mission %q not present in missions_data", c.SelectedMission), nil)
	}

	ext := data.FileExtension
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	levels := data.ValidDataLevels
	if len(levels) == 0 {
		levels = []string{"raw", "l0", "l1", "ql", "l2", "l3", "l4"}
	}

	c.Mission = Mission{
		Name:            c.SelectedMission,
		FileExtension:   ext,
		ValidDataLevels: levels,
		Instruments:     data.Instruments,
	}
	return nil
}
