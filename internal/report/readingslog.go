package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
)

// maxReadingsLines bounds the raw readings CSV; at the 5 s cadence this
// is a bit over two days of samples.
const maxReadingsLines = 40000

// ReadingsLog appends every reading to a CSV file, trimmed back to the
// most recent maxReadingsLines entries at startup.
type ReadingsLog struct {
	Path string
	Log  *logrus.Logger
}

// NewReadingsLog trims any existing file at path and returns the sink.
func NewReadingsLog(path string, log *logrus.Logger) (*ReadingsLog, error) {
	if err := keepLastLines(path, maxReadingsLines); err != nil {
		return nil, err
	}
	return &ReadingsLog{Path: path, Log: log}, nil
}

func (l *ReadingsLog) Reading(r alarm.Reading) {
	file, err := os.OpenFile(l.Path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		l.Log.Error("Error opening readings log: ", err)
		return
	}
	defer file.Close()

	// timestamp, status, capacity, voltage, E, current, power, out_of_range
	line := fmt.Sprintf("%s, %s, %d, %.3f, %.3f, %.3f, %.3f, %t",
		r.Time.Format("2006-01-02 15:04:05"),
		r.StatusWord(), r.Capacity,
		r.Voltage, r.E, r.Current, r.Power(), r.OutOfRange)
	if _, err := file.WriteString(line + "\n"); err != nil {
		l.Log.Error("Error writing readings log: ", err)
	}
}

func (l *ReadingsLog) SessionFlushed(*alarm.SessionReport, []alarm.Reading) {}

// keepLastLines keeps the last maxLines lines of the specified file.
func keepLastLines(path string, maxLines int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	lines := bytes.Split(bytes.TrimSuffix(data, []byte("\n")), []byte("\n"))
	if len(lines) <= maxLines {
		return nil
	}
	kept := bytes.Join(lines[len(lines)-maxLines:], []byte("\n"))
	return os.WriteFile(path, append(kept, '\n'), 0644)
}
