// Package report delivers live reading lines and flushed session
// summaries to the terminal, to log files, and to optional external
// services. Every sink tolerates its own I/O failures; none of them is
// allowed to stop the polling loop.
package report

import (
	"fmt"
	"io"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
)

// Console echoes every reading line and prints each session report,
// framed by blank lines the way the readings stream expects.
type Console struct {
	Out io.Writer
}

func (c *Console) Reading(r alarm.Reading) {
	fmt.Fprintln(c.Out, r.Line(true))
}

func (c *Console) SessionFlushed(rep *alarm.SessionReport, _ []alarm.Reading) {
	fmt.Fprintf(c.Out, "\n%s\n\n", rep)
}
