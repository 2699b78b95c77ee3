// Package input reads line-oriented commands from the terminal and
// turns them into control flags for the polling loop.
package input

import (
	"bufio"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
)

// Listen consumes commands from r until 'e' or end of input (Ctrl+D),
// both of which request exit. 'l' toggles log saving; 'c' and 'd' set
// the manual charging flag and are ignored outside manual-switch mode.
// Only the first letter of each line matters.
func Listen(r io.Reader, manual bool, flags *alarm.Flags, log *logrus.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		switch strings.ToLower(word)[0] {
		case 'e':
			flags.Exit.Store(true)
			return
		case 'c':
			if manual {
				flags.ManualCharging.Store(true)
			}
		case 'd':
			if manual {
				flags.ManualCharging.Store(false)
			}
		case 'l':
			enabled := !flags.SaveLog.Load()
			flags.SaveLog.Store(enabled)
			if enabled {
				log.Info("Log saving enabled.")
			} else {
				log.Info("Log saving disabled.")
			}
		}
	}
	// Input ended.
	flags.Exit.Store(true)
}
