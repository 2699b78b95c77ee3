// Package alarm contains the sampling, thresholding and
// session-accounting engine: it turns a stream of periodic battery
// readings into real-time alarm decisions and per-session energy
// statistics.
package alarm

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode selects how the charge direction and the measured current are
// interpreted.
type Mode int

const (
	// ModeAutomatic trusts the power gauge: the charging flag and the
	// measured current both refer to the battery cell.
	ModeAutomatic Mode = iota
	// ModeManualSwitch is for machines whose gauge cannot report the
	// charge direction. The user toggles the charging flag by hand and
	// the measured current is the computer-circuit draw, not the cell
	// current.
	ModeManualSwitch
)

func (m Mode) String() string {
	if m == ModeManualSwitch {
		return "manual-switch"
	}
	return "automatic"
}

const (
	timeLayout = "2006-01-02 15:04:05"
	fileLayout = "2006-01-02_15_04_05"

	// displayPrecision is the number of decimals used when rendering
	// voltages, currents and powers.
	displayPrecision = 3
)

// Reading is one sample of the battery's electrical state.
type Reading struct {
	Time     time.Time
	Charging bool
	Full     bool    // implies Charging
	Voltage  float64 // terminal voltage, V
	Current  float64 // A, positive in the direction of charging
	E        float64 // open-circuit voltage estimate, V
	Capacity int     // remaining percent, -1 when unknown

	// OutOfRange is set by the evaluator; the source cannot decide it.
	OutOfRange bool
}

// Power returns the power absorbed by the battery in watts. While
// charging the terminal voltage is the better power reference; while
// discharging the resistance-corrected open-circuit voltage is, so the
// result is negative (power leaving the cell).
func (r Reading) Power() float64 {
	if r.Current >= 0 {
		return r.Voltage * r.Current
	}
	return r.E * r.Current
}

// StatusWord is the charge-state word used in rendered lines.
func (r Reading) StatusWord() string {
	if r.Full {
		return "Full"
	}
	if r.Charging {
		return "Charging"
	}
	return "Discharging"
}

// Line renders the reading the way it appears on the console and in
// session logs:
//
//	2021-08-10 10:00:05 Charging 85%, 3.920 V (E: 3.830 V) +0.900 A +3.528 W   !
//
// The capacity is omitted when unknown and the trailing "!" marks an
// out-of-range sample. Session logs drop the status word because the
// whole file shares one charge state.
func (r Reading) Line(withStatus bool) string {
	var b strings.Builder
	b.WriteString(r.Time.Format(timeLayout))
	if withStatus {
		b.WriteByte(' ')
		b.WriteString(r.StatusWord())
	}
	b.WriteByte(' ')
	if r.Capacity >= 0 {
		b.WriteString(strconv.Itoa(r.Capacity))
		b.WriteString("%, ")
	}
	b.WriteString(formatFloat(r.Voltage, displayPrecision, false))
	b.WriteString(" V (E: ")
	b.WriteString(formatFloat(r.E, displayPrecision, false))
	b.WriteString(" V) ")
	b.WriteString(formatFloat(r.Current, displayPrecision, true))
	b.WriteString(" A ")
	b.WriteString(formatFloat(r.Power(), displayPrecision, true))
	b.WriteString(" W")
	if r.OutOfRange {
		b.WriteString("   !")
	}
	return b.String()
}

// ParseLine is the inverse of Line. Voltage and current survive the
// round trip at display precision; the power field is recomputed from
// them rather than trusted.
func ParseLine(line string) (Reading, error) {
	fields := strings.Fields(line)
	if len(fields) < 10 {
		return Reading{}, fmt.Errorf("reading line too short: %q", line)
	}

	r := Reading{Capacity: -1}
	ts, err := time.ParseInLocation(timeLayout, fields[0]+" "+fields[1], time.Local)
	if err != nil {
		return Reading{}, fmt.Errorf("bad reading timestamp: %v", err)
	}
	r.Time = ts

	i := 2
	switch fields[i] {
	case "Full":
		r.Charging, r.Full = true, true
		i++
	case "Charging":
		r.Charging = true
		i++
	case "Discharging":
		i++
	}

	if strings.HasSuffix(fields[i], "%,") {
		capacity, err := strconv.Atoi(strings.TrimSuffix(fields[i], "%,"))
		if err != nil {
			return Reading{}, fmt.Errorf("bad capacity field %q", fields[i])
		}
		r.Capacity = capacity
		i++
	}

	// <voltage> V (E: <E> V) <current> A <power> W [!]
	if len(fields) < i+9 {
		return Reading{}, fmt.Errorf("reading line too short: %q", line)
	}
	if fields[i+1] != "V" || fields[i+2] != "(E:" || fields[i+4] != "V)" ||
		fields[i+6] != "A" || fields[i+8] != "W" {
		return Reading{}, fmt.Errorf("malformed reading line: %q", line)
	}
	if r.Voltage, err = strconv.ParseFloat(fields[i], 64); err != nil {
		return Reading{}, fmt.Errorf("bad voltage field %q", fields[i])
	}
	if r.E, err = strconv.ParseFloat(fields[i+3], 64); err != nil {
		return Reading{}, fmt.Errorf("bad effective voltage field %q", fields[i+3])
	}
	if r.Current, err = strconv.ParseFloat(fields[i+5], 64); err != nil {
		return Reading{}, fmt.Errorf("bad current field %q", fields[i+5])
	}
	if i+9 < len(fields) && fields[i+9] == "!" {
		r.OutOfRange = true
	}
	return r, nil
}

// formatFloat renders v with a fixed number of decimals, optionally
// forcing a leading "+" on non-negative values. All user-visible float
// rendering goes through here so precision and sign display stay
// consistent regardless of locale.
func formatFloat(v float64, precision int, forceSign bool) string {
	s := strconv.FormatFloat(v, 'f', precision, 64)
	if forceSign && !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s
}
