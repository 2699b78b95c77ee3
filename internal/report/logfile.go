package report

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
)

// SessionLogger writes one file per flushed session while log saving is
// enabled, named <Charging|Discharging>_<start-timestamp>.log. The file
// holds the report followed by every retained reading.
type SessionLogger struct {
	Dir   string
	Flags *alarm.Flags
	Log   *logrus.Logger
}

func (l *SessionLogger) Reading(alarm.Reading) {}

func (l *SessionLogger) SessionFlushed(rep *alarm.SessionReport, readings []alarm.Reading) {
	if !l.Flags.SaveLog.Load() {
		return
	}

	word := "Discharging"
	if rep.Charging {
		word = "Charging"
	}
	path := filepath.Join(l.Dir, word+"_"+rep.Start.Format("2006-01-02_15_04_05")+".log")

	var b strings.Builder
	b.WriteString(rep.String())
	b.WriteString("\n\n")
	for _, r := range readings {
		b.WriteString(r.Line(false))
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		l.Log.Error("Error saving session log: ", err)
		return
	}
	l.Log.Info("Session log saved to ", path)
}
