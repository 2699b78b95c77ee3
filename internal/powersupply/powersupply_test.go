package powersupply

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
)

// fakeSysfs builds a power-supply device directory the way the kernel
// lays one out, with values in microvolts/microamps.
func fakeSysfs(t *testing.T, attrs map[string]string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "BAT0")
	require.NoError(t, os.Mkdir(dir, 0755))
	for name, value := range attrs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0644))
	}
	return root
}

func batteryAttrs() map[string]string {
	return map[string]string{
		"status":             "Discharging",
		"voltage_now":        "3900000",
		"current_now":        "-500000",
		"capacity":           "85",
		"voltage_max_design": "4200000",
		"technology":         "Li-ion",
	}
}

func TestDiscoverAndRead(t *testing.T) {
	root := fakeSysfs(t, batteryAttrs())
	s, err := DiscoverWithRetries(root, 0, alarm.ModeAutomatic, 0.1)
	require.NoError(t, err)
	require.True(t, s.Valid())
	require.Equal(t, filepath.Join(root, "BAT0"), s.Device())
	require.Equal(t, "Li-ion", s.Technology())
	require.InDelta(t, 4.2, s.MaxVoltageDesign(), 1e-9)

	r := s.Read()
	require.False(t, r.Charging)
	require.False(t, r.Full)
	require.InDelta(t, 3.9, r.Voltage, 1e-9)
	require.InDelta(t, -0.5, r.Current, 1e-9)
	// E = U - I*R with the current flowing out of the cell.
	require.InDelta(t, 3.95, r.E, 1e-9)
	require.Equal(t, 85, r.Capacity)
	require.False(t, r.Time.IsZero())
}

func TestReadChargingAndFull(t *testing.T) {
	attrs := batteryAttrs()
	attrs["status"] = "Charging"
	attrs["current_now"] = "500000"
	root := fakeSysfs(t, attrs)
	s, err := DiscoverWithRetries(root, 0, alarm.ModeAutomatic, 0.1)
	require.NoError(t, err)

	r := s.Read()
	require.True(t, r.Charging)
	require.False(t, r.Full)
	require.InDelta(t, 3.85, r.E, 1e-9)

	require.NoError(t, os.WriteFile(
		filepath.Join(s.Device(), "status"), []byte("Full\n"), 0644))
	r = s.Read()
	require.True(t, r.Charging)
	require.True(t, r.Full)
}

func TestReadManualSwitch(t *testing.T) {
	root := fakeSysfs(t, batteryAttrs())
	s, err := DiscoverWithRetries(root, 0, alarm.ModeManualSwitch, 0.1)
	require.NoError(t, err)

	// The gauge status is ignored; the override decides the direction.
	s.SetCharging(true)
	r := s.Read()
	require.True(t, r.Charging)
	// While charging the measured current bypasses the cell, so E stays
	// at the terminal voltage.
	require.InDelta(t, 3.9, r.E, 1e-9)
	// Capacity is not trusted in manual-switch mode.
	require.Equal(t, -1, r.Capacity)

	s.SetCharging(false)
	r = s.Read()
	require.False(t, r.Charging)
	require.InDelta(t, 3.95, r.E, 1e-9)
}

func TestReadMissingOptionalAttrs(t *testing.T) {
	attrs := batteryAttrs()
	delete(attrs, "capacity")
	delete(attrs, "voltage_max_design")
	delete(attrs, "technology")
	root := fakeSysfs(t, attrs)
	s, err := DiscoverWithRetries(root, 0, alarm.ModeAutomatic, 0.1)
	require.NoError(t, err)

	r := s.Read()
	require.Equal(t, -1, r.Capacity)
	require.Equal(t, 0.0, s.MaxVoltageDesign())
	require.Equal(t, "", s.Technology())
}

func TestDiscoverNoDevice(t *testing.T) {
	_, err := DiscoverWithRetries(t.TempDir(), 0, alarm.ModeAutomatic, 0.1)
	require.Error(t, err)
}

func TestDiscoverMissingRequiredAttr(t *testing.T) {
	attrs := batteryAttrs()
	delete(attrs, "current_now")
	root := fakeSysfs(t, attrs)
	_, err := DiscoverWithRetries(root, 0, alarm.ModeAutomatic, 0.1)
	require.Error(t, err)
}
