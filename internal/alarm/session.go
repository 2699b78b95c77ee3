package alarm

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// PollInterval is the fixed sampling cadence. It also scales the
	// sleep-gap clamp and the manual-switch debounce lookback.
	PollInterval = 5 * time.Second

	// gapClampFactor bounds the elapsed time attributed to one sample.
	// A longer gap means the host was suspended; integrating the full
	// gap against one instantaneous power value would massively distort
	// the energy sums.
	gapClampFactor = 5

	// maxSessionReadings caps the buffer at about 4 MiB of readings.
	maxSessionReadings = 0x20000

	// minSessionReadings is the smallest session worth reporting;
	// shorter ones are discarded silently.
	minSessionReadings = 5

	// debounceLookback is how many samples (~15 s) before the session
	// end the debounce reference is taken from.
	debounceLookback = 3
	// debounceTrimMax is the most trailing readings the debounce trim
	// may drop.
	debounceTrimMax = 2
	// debounceVoltageDelta is the voltage step treated as a delayed
	// manual status switch rather than real cell behavior.
	debounceVoltageDelta = 0.1

	// capacityDeltaForEstimate is the least capacity movement (in
	// percent points) for a full-capacity extrapolation to be credible.
	capacityDeltaForEstimate = 5
)

// SessionReport is the read-only summary of one flushed session.
// Computed once per flush and never mutated afterwards.
type SessionReport struct {
	Charging bool
	Start    time.Time
	End      time.Time

	StartE        float64
	EndE          float64
	StartCapacity int // -1 when unknown or manual-switch mode
	EndCapacity   int

	Readings          int
	OutOfRangePercent float64

	AvgPower  float64 // W, signed
	PeakPower float64 // W, largest magnitude with sign preserved

	EnergyWh  float64 // net energy transferred, signed
	ChargeMAh float64 // net charge transferred, signed

	LossWh       float64 // energy wasted on internal resistance
	AvgLossPower float64 // W
	Efficiency   float64 // percent, 0 when not computable

	// Extrapolated full capacity, 0 unless the capacity moved at least
	// capacityDeltaForEstimate points during the session.
	EstFullWh  float64
	EstFullMAh float64
}

// Duration is the time covered by the session's retained readings.
func (s *SessionReport) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// String renders the multi-line report shown on the console and written
// at the top of session log files.
func (s *SessionReport) String() string {
	word := "Discharging"
	if s.Charging {
		word = "Charging"
	}

	var b strings.Builder
	b.WriteString(word)
	b.WriteString(" for ")
	b.WriteString(strconv.Itoa(int(s.Duration().Seconds())))
	b.WriteString(" seconds (out of range in ")
	b.WriteString(formatFloat(s.OutOfRangePercent, 0, false))
	b.WriteString("% of time)\nfrom ")
	b.WriteString(s.Start.Format(timeLayout))
	b.WriteString(" to ")
	b.WriteString(s.End.Format(timeLayout))
	b.WriteString(",\nbattery voltage changed from ")
	b.WriteString(formatFloat(s.StartE, displayPrecision, false))
	b.WriteString(" V")
	if s.StartCapacity >= 0 {
		b.WriteString(" (" + strconv.Itoa(s.StartCapacity) + "%)")
	}
	b.WriteString(" to ")
	b.WriteString(formatFloat(s.EndE, displayPrecision, false))
	b.WriteString(" V")
	if s.EndCapacity >= 0 {
		b.WriteString(" (" + strconv.Itoa(s.EndCapacity) + "%)")
	}
	b.WriteString(",\naverage power ")
	b.WriteString(formatFloat(s.AvgPower, displayPrecision, true))
	b.WriteString(" W (peak ")
	b.WriteString(formatFloat(s.PeakPower, displayPrecision, true))
	b.WriteString(" W),\n")
	b.WriteString(formatFloat(math.Abs(s.EnergyWh), displayPrecision, false))
	b.WriteString(" Wh (about ")
	b.WriteString(strconv.Itoa(int(math.Round(math.Abs(s.ChargeMAh)))))
	b.WriteString(" mAh) ")
	if s.Charging {
		b.WriteString("charged")
	} else {
		b.WriteString("discharged")
	}
	if s.LossWh > 0 {
		b.WriteString(",\nresistive loss ")
		b.WriteString(formatFloat(s.LossWh, displayPrecision, false))
		b.WriteString(" Wh (")
		b.WriteString(formatFloat(s.AvgLossPower, displayPrecision, false))
		b.WriteString(" W average)")
	}
	if s.Efficiency > 0 && s.Efficiency < 100 {
		b.WriteString(",\nefficiency ")
		b.WriteString(formatFloat(s.Efficiency, 0, false))
		b.WriteString("%")
	}
	if s.EstFullWh != 0 {
		b.WriteString(",\nestimated full capacity ")
		b.WriteString(formatFloat(math.Abs(s.EstFullWh), displayPrecision, false))
		b.WriteString(" Wh (about ")
		b.WriteString(strconv.Itoa(int(math.Round(math.Abs(s.EstFullMAh)))))
		b.WriteString(" mAh)")
	}
	b.WriteString(".")
	return b.String()
}

// Flush carries a finished session out of the accumulator: the report
// plus the retained raw readings for optional persistence.
type Flush struct {
	Report   *SessionReport
	Readings []Reading
}

// Accumulator groups readings into charging/discharging sessions and
// integrates the energy transferred within each one. It is not safe for
// concurrent use; only the polling loop may drive it.
type Accumulator struct {
	mode     Mode
	interval time.Duration

	readings []Reading
	polarity bool // the session's charging flag

	wh         float64 // energy, Wh, signed
	mah        float64 // charge, mAh, signed
	rwh        float64 // resistive loss, Wh, never negative
	peakPower  float64
	outOfRange int
}

// NewAccumulator returns an empty accumulator. The interval is the
// expected spacing between readings; gaps beyond five times it are
// treated as host suspension.
func NewAccumulator(mode Mode, interval time.Duration) *Accumulator {
	if interval <= 0 {
		interval = PollInterval
	}
	return &Accumulator{mode: mode, interval: interval}
}

// Len is the number of readings buffered in the current session.
func (a *Accumulator) Len() int {
	return len(a.readings)
}

// Ingest consumes one reading and returns a non-nil Flush when it ended
// a session long enough to report. Sessions end on a charge-state flip
// (the arriving reading then seeds the next session), on a detected
// polling gap, on the buffer size cap, or on shutdown (the arriving
// reading is then included in the final flush).
func (a *Accumulator) Ingest(r Reading, shutdown bool) *Flush {
	if len(a.readings) == 0 {
		a.append(r)
		a.polarity = r.Charging
		if shutdown {
			return a.flush()
		}
		return nil
	}

	prev := a.readings[len(a.readings)-1]
	dt := r.Time.Sub(prev.Time).Seconds()
	if dt < 0 {
		dt = 0
	}
	gap := false
	if limit := gapClampFactor * a.interval.Seconds(); dt > limit {
		dt = limit
		gap = true
	}

	// Left-reading integration: the previous sample's power and current
	// are held constant over dt.
	a.wh += prev.Power() * dt / 3600
	a.mah += prev.Current * 1000 * dt / 3600
	if a.mode == ModeAutomatic || !prev.Charging {
		// While charging in manual-switch mode the measured current
		// does not flow through the cell, so no loss can be attributed.
		a.rwh += math.Abs(prev.E-prev.Voltage) * math.Abs(prev.Current) * dt / 3600
	}

	switch {
	case len(a.readings) >= maxSessionReadings:
		return a.flush()
	case r.Charging != a.polarity:
		f := a.flush()
		a.append(r)
		a.polarity = r.Charging
		return f
	case gap:
		return a.flush()
	}

	a.append(r)
	if shutdown {
		return a.flush()
	}
	return nil
}

func (a *Accumulator) append(r Reading) {
	a.readings = append(a.readings, r)
	if math.Abs(r.Power()) > math.Abs(a.peakPower) {
		a.peakPower = r.Power()
	}
	if r.OutOfRange {
		a.outOfRange++
	}
}

// flush computes the report for the buffered session and resets the
// accumulator. Sessions below minSessionReadings are dropped.
func (a *Accumulator) flush() *Flush {
	readings := a.readings
	outOfRange := a.outOfRange
	wh, mah, rwh := a.wh, a.mah, a.rwh
	peak := a.peakPower
	polarity := a.polarity

	a.readings = nil
	a.wh, a.mah, a.rwh = 0, 0, 0
	a.peakPower = 0
	a.outOfRange = 0

	if len(readings) < minSessionReadings {
		return nil
	}

	if a.mode == ModeManualSwitch {
		readings, outOfRange = debounceTrim(readings, outOfRange)
	}

	first := readings[0]
	last := readings[len(readings)-1]
	span := last.Time.Sub(first.Time).Seconds()

	rep := &SessionReport{
		Charging:          polarity,
		Start:             first.Time,
		End:               last.Time,
		StartE:            first.E,
		EndE:              last.E,
		StartCapacity:     -1,
		EndCapacity:       -1,
		Readings:          len(readings),
		OutOfRangePercent: 100 * float64(outOfRange) / float64(len(readings)),
		PeakPower:         peak,
		LossWh:            rwh,
		ChargeMAh:         mah,
	}
	if a.mode == ModeAutomatic {
		rep.StartCapacity = first.Capacity
		rep.EndCapacity = last.Capacity
	}

	// Net of resistive loss only when charging; a discharge session's
	// loss already happened outside the cell terminals.
	rep.EnergyWh = wh
	if wh > 0 {
		rep.EnergyWh = wh - rwh
	}

	if span > 0 {
		rep.AvgPower = wh * 3600 / span
		rep.AvgLossPower = rwh * 3600 / span
	}

	if wh != 0 && (wh < 0 || a.mode == ModeAutomatic) {
		rep.Efficiency = math.Round((1 - rwh/wh) * 100)
	}

	if a.mode == ModeAutomatic && first.Capacity >= 0 && last.Capacity >= 0 {
		dcap := last.Capacity - first.Capacity
		if dcap >= capacityDeltaForEstimate || dcap <= -capacityDeltaForEstimate {
			rep.EstFullWh = rep.EnergyWh * 100 / float64(dcap)
			rep.EstFullMAh = mah * 100 / float64(dcap)
		}
	}

	return &Flush{Report: rep, Readings: readings}
}

// debounceTrim drops trailing readings recorded after the user flipped
// the manual charging flag late. The session's last reading is compared
// against the one debounceLookback samples earlier; while the trailing
// reading still differs from that reference by debounceVoltageDelta or
// more, it is removed, up to debounceTrimMax times. The out-of-range
// count is decremented exactly once per removed reading that had been
// counted.
func debounceTrim(readings []Reading, outOfRange int) ([]Reading, int) {
	if len(readings) <= debounceLookback {
		return readings, outOfRange
	}
	ref := readings[len(readings)-1-debounceLookback]

	for trimmed := 0; trimmed < debounceTrimMax; trimmed++ {
		i := len(readings) - 1
		if i <= 0 || math.Abs(readings[i].Voltage-ref.Voltage) < debounceVoltageDelta {
			break
		}
		if readings[i].OutOfRange && outOfRange > 0 {
			outOfRange--
		}
		readings = readings[:i]
	}
	return readings, outOfRange
}
