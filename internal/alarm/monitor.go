package alarm

import (
	"errors"
	"io"
	"time"
)

// PowerSource produces readings on demand. Implementations report their
// own static limits; the monitor refuses to start on an invalid source.
type PowerSource interface {
	Valid() bool
	Read() Reading
	MaxVoltageDesign() float64
	Technology() string
	// SetCharging applies the manual charging override before a read.
	// Automatic-mode sources may ignore it.
	SetCharging(charging bool)
}

// Sink receives each reading in real time and every flushed session.
type Sink interface {
	Reading(r Reading)
	SessionFlushed(rep *SessionReport, readings []Reading)
}

// Notifier pushes alarm conditions somewhere the user will see them
// away from the terminal. Implementations are driven from the polling
// goroutine only.
type Notifier interface {
	AlarmRaised(r Reading)
	SessionEnded(rep *SessionReport)
}

// ErrSourceInvalid is returned by Run when the power source reports it
// found no usable battery gauge.
var ErrSourceInvalid = errors.New("power source is not usable")

// Monitor owns the polling loop: every interval it pulls one reading,
// evaluates it against the thresholds, feeds it to the accumulator and
// fans results out to the sinks. Control flags are sampled once per
// iteration; shutdown is cooperative and performs one final flush.
type Monitor struct {
	Source   PowerSource
	Eval     Evaluator
	Acc      *Accumulator
	Flags    *Flags
	Sinks    []Sink
	Notifier Notifier // may be nil

	// Interval defaults to PollInterval when zero.
	Interval time.Duration
	// Bell receives the audible alarm signal, one "\a" per reading
	// that triggers it.
	Bell io.Writer
}

// Run blocks until the exit flag is observed. The sleep between
// iterations is a plain blocking sleep, so an exit request takes effect
// at the next iteration boundary.
func (m *Monitor) Run() error {
	if m.Source == nil || !m.Source.Valid() {
		return ErrSourceInvalid
	}
	interval := m.Interval
	if interval <= 0 {
		interval = PollInterval
	}
	manual := m.Eval.Mode == ModeManualSwitch

	for {
		if manual {
			m.Source.SetCharging(m.Flags.ManualCharging.Load())
		}
		r := m.Source.Read()

		if _, sound := m.Eval.Evaluate(&r); sound {
			if m.Bell != nil {
				io.WriteString(m.Bell, "\a")
			}
			if m.Notifier != nil {
				m.Notifier.AlarmRaised(r)
			}
		}

		for _, s := range m.Sinks {
			s.Reading(r)
		}

		exit := m.Flags.Exit.Load()
		if f := m.Acc.Ingest(r, exit); f != nil {
			for _, s := range m.Sinks {
				s.SessionFlushed(f.Report, f.Readings)
			}
			if m.Notifier != nil {
				m.Notifier.SessionEnded(f.Report)
			}
		}
		if exit {
			return nil
		}
		time.Sleep(interval)
	}
}
