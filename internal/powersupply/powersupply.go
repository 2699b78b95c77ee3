// Package powersupply reads battery state from the Linux power-supply
// sysfs class (/sys/class/power_supply). It implements the core's
// PowerSource interface; any gauge whose driver exposes voltage_now,
// current_now and status is usable.
package powersupply

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
)

// DefaultRoot is where the kernel exposes power-supply devices.
const DefaultRoot = "/sys/class/power_supply"

const discoverRetries = 4

// Source is a sysfs-backed power source. Values read from the kernel
// are in microvolts/microamps and are scaled to V/A. The current's
// reference direction is the direction of charging.
type Source struct {
	dir  string // device directory, empty when no gauge was found
	mode alarm.Mode
	ir   float64 // internal resistance, ohm

	// charging tracks the gauge status in automatic mode and holds the
	// manual override in manual-switch mode.
	charging bool
}

// Discover locates the first power-supply device under root that
// exposes voltage_now, retrying briefly in case the gauge driver is
// still coming up.
func Discover(root string, mode alarm.Mode, internalResistance float64) (*Source, error) {
	return DiscoverWithRetries(root, discoverRetries, mode, internalResistance)
}

// DiscoverWithRetries is Discover with an explicit retry count.
func DiscoverWithRetries(root string, retries uint64, mode alarm.Mode, internalResistance float64) (*Source, error) {
	s := &Source{mode: mode, ir: internalResistance}

	find := func() error {
		dir, err := findDevice(root)
		if err != nil {
			return err
		}
		s.dir = dir
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), retries)
	if err := backoff.Retry(find, b); err != nil {
		return nil, err
	}

	for _, name := range []string{"status", "voltage_now", "current_now"} {
		if !readable(filepath.Join(s.dir, name)) {
			return nil, fmt.Errorf("power supply %s does not expose %s", s.dir, name)
		}
	}

	if mode == alarm.ModeAutomatic {
		// Prime the charging flag so the first real reading already
		// carries the right polarity.
		s.Read()
	}
	return s, nil
}

func findDevice(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}
	for _, ent := range entries {
		dir := filepath.Join(root, ent.Name())
		if _, err := os.Stat(filepath.Join(dir, "voltage_now")); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("no power-supply device with voltage_now under %s", root)
}

// Valid reports whether a usable gauge was found.
func (s *Source) Valid() bool {
	return s != nil && s.dir != ""
}

// Device returns the sysfs directory of the selected gauge.
func (s *Source) Device() string {
	return s.dir
}

// SetCharging applies the manual charging override. In automatic mode
// the next Read overwrites it from the gauge status.
func (s *Source) SetCharging(charging bool) {
	s.charging = charging
}

// Read takes one sample. Failures of individual attribute files degrade
// to zero values rather than errors; one bad sample at the polling
// cadence is not worth retrying.
func (s *Source) Read() alarm.Reading {
	if !s.Valid() {
		return alarm.Reading{Time: time.Now(), Capacity: -1}
	}

	full := false
	if s.mode == alarm.ModeAutomatic {
		switch status := s.readString("status"); {
		case strings.EqualFold(status, "Full"):
			s.charging, full = true, true
		default:
			s.charging = strings.EqualFold(status, "Charging")
		}
	}

	u := s.readValue("voltage_now") / 1e6
	i := s.readValue("current_now") / 1e6

	// E cannot be corrected while charging in manual-switch mode: the
	// measured current bypasses the cell.
	e := u
	if !(s.mode == alarm.ModeManualSwitch && s.charging) {
		e = u + (-i * s.ir)
	}

	capacity := -1
	if s.mode == alarm.ModeAutomatic {
		if v, ok := s.readValueOK("capacity"); ok {
			capacity = int(v)
		}
	}

	return alarm.Reading{
		Time:     time.Now(),
		Charging: s.charging,
		Full:     full,
		Voltage:  u,
		Current:  i,
		E:        e,
		Capacity: capacity,
	}
}

// MaxVoltageDesign returns the device's designed maximum terminal
// voltage in volts, 0 when the gauge does not report one.
func (s *Source) MaxVoltageDesign() float64 {
	if !s.Valid() {
		return 0
	}
	v, _ := s.readValueOK("voltage_max_design")
	return v / 1e6
}

// Technology returns the battery chemistry string ("Li-ion", ...) or ""
// when unreported.
func (s *Source) Technology() string {
	if !s.Valid() {
		return ""
	}
	return s.readString("technology")
}

func (s *Source) readString(name string) string {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Source) readValue(name string) float64 {
	v, _ := s.readValueOK(name)
	return v
}

func (s *Source) readValueOK(name string) (float64, bool) {
	str := s.readString(name)
	if str == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
