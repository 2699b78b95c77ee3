package alarm

import "sync/atomic"

// Flags is the control state shared between the input goroutine and the
// polling loop. Each flag has exactly one writer (the input goroutine)
// and one reader (the loop), which samples them once per iteration; a
// toggle may therefore be observed one poll cycle late.
type Flags struct {
	// Exit requests a final flush and shutdown.
	Exit atomic.Bool
	// ManualCharging is the user's charging override; it is only
	// meaningful in manual-switch mode.
	ManualCharging atomic.Bool
	// SaveLog enables writing flushed sessions to log files.
	SaveLog atomic.Bool
}
