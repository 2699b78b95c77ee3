// Package config persists the alarm configuration as a TOML file in the
// user's config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
)

const (
	// ConfigEntry is the directory name under the user config dir.
	ConfigEntry = "simple-battery-voltage-alarm"
	// FileName is the config file name inside the config directory.
	FileName = "config.toml"
)

// Config is immutable during a run; changing it on disk makes the
// watcher exit the program so it restarts with the new settings.
type Config struct {
	// ManualSwitch is set on machines whose power gauge cannot report
	// the charge direction, where the measured current is the
	// computer-circuit draw rather than the cell current.
	ManualSwitch       bool    `toml:"manual_switch"`
	InternalResistance float64 `toml:"internal_resistance"` // ohm
	MinVoltage         float64 `toml:"min_voltage"`         // V
	MaxVoltage         float64 `toml:"max_voltage"`         // V, effective-voltage ceiling
	MaxPower           float64 `toml:"max_power"`           // W, absolute
	LogDir             string  `toml:"log_dir"`

	InfluxDB InfluxDB `toml:"influxdb"`
	Pushover Pushover `toml:"pushover"`
}

// InfluxDB enables mirroring readings and session summaries into an
// InfluxDB database when Address is set.
type InfluxDB struct {
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

// Pushover enables push notifications when both fields are set.
type Pushover struct {
	Token string `toml:"token"`
	User  string `toml:"user"`
}

// Default returns the configuration for a typical single-cell Li-ion
// battery.
func Default() Config {
	return Config{
		InternalResistance: 0.1,
		MinVoltage:         3.8,
		MaxVoltage:         4.15,
		MaxPower:           5,
		LogDir:             DefaultDir(),
	}
}

// DefaultDir is where the config file and session logs live, normally
// ~/.config/simple-battery-voltage-alarm.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, ConfigEntry)
}

// Mode maps the manual-switch setting onto the core's mode enum.
func (c Config) Mode() alarm.Mode {
	if c.ManualSwitch {
		return alarm.ModeManualSwitch
	}
	return alarm.ModeAutomatic
}

// String renders the user-facing settings summary printed at startup.
func (c Config) String() string {
	var b strings.Builder
	b.WriteString("Manual switch: ")
	if c.ManualSwitch {
		b.WriteString("Enabled")
	} else {
		b.WriteString("Disabled")
	}
	fmt.Fprintf(&b, "\nInternal resistance: %.3f Ohm", c.InternalResistance)
	fmt.Fprintf(&b, "\nMin voltage: %.3f V", c.MinVoltage)
	fmt.Fprintf(&b, "\nMax voltage: %.3f V", c.MaxVoltage)
	fmt.Fprintf(&b, "\nMax power: %.3f W", c.MaxPower)
	return b.String()
}

// Load reads the config file at path. A missing file is reported with
// an error satisfying os.IsNotExist so the caller can run first-time
// setup.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
