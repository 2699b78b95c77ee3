package alarm

import "math"

// Thresholds is the configured safe envelope.
type Thresholds struct {
	MinVoltage float64 // terminal-voltage floor, V
	MaxVoltage float64 // effective-voltage ceiling, V
	MaxPower   float64 // absolute power ceiling, W
}

// Limits are the static bounds reported by the power source itself.
type Limits struct {
	// MaxVoltageDesign is the hard upper terminal-voltage bound from
	// the device, 0 when the gauge does not report one.
	MaxVoltageDesign float64
}

// Evaluator decides whether a reading is outside the safe envelope and
// whether the breach deserves an audible alarm. It holds no state; the
// result is a pure function of one reading plus the configuration.
type Evaluator struct {
	Mode       Mode
	Thresholds Thresholds
	Limits     Limits
}

// Evaluate tags r with the out-of-range flag and reports whether the
// alarm should sound for it.
//
// The two flags differ on direction: a low-voltage breach only matters
// while the battery is actually draining and a high-voltage breach only
// while it is charging, so neither raises a nuisance alarm in the other
// regime. The design-limit and power breaches always sound.
func (e Evaluator) Evaluate(r *Reading) (outOfRange, shouldSound bool) {
	lowVoltage := r.Voltage < e.Thresholds.MinVoltage
	highVoltage := r.E > e.Thresholds.MaxVoltage
	overDesign := e.Limits.MaxVoltageDesign > 0 && r.Voltage > e.Limits.MaxVoltageDesign
	overPower := math.Abs(r.Power()) > e.Thresholds.MaxPower

	outOfRange = lowVoltage || highVoltage || overDesign || overPower
	r.OutOfRange = outOfRange
	if !outOfRange {
		return false, false
	}

	discharging := !r.Charging
	if e.Mode == ModeManualSwitch {
		// The manual charging flag can lag reality; only trust a
		// discharge when the measured current agrees.
		discharging = !r.Charging && r.Current < 0
	}
	shouldSound = (discharging && lowVoltage) ||
		(r.Charging && highVoltage) ||
		overDesign || overPower
	return outOfRange, shouldSound
}
