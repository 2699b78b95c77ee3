package report

import (
	"time"

	"github.com/gregdel/pushover"
	"github.com/sirupsen/logrus"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
)

// Out-of-range readings repeat every poll; don't page the phone every
// 5 seconds for the same condition.
const alarmPushInterval = 10 * time.Minute

// PushoverNotifier sends alarm and session notifications to a Pushover
// recipient. Called only from the polling goroutine, so the rate-limit
// timestamp needs no lock.
type PushoverNotifier struct {
	push      *pushover.Pushover
	recipient *pushover.Recipient
	log       *logrus.Logger
	lastAlarm time.Time
}

func NewPushoverNotifier(token, user string, log *logrus.Logger) *PushoverNotifier {
	return &PushoverNotifier{
		push:      pushover.New(token),
		recipient: pushover.NewRecipient(user),
		log:       log,
	}
}

func (n *PushoverNotifier) AlarmRaised(r alarm.Reading) {
	if !n.alarmDue(time.Now()) {
		return
	}
	n.send(pushover.NewMessageWithTitle(r.Line(true), "Battery out of range"))
}

func (n *PushoverNotifier) alarmDue(now time.Time) bool {
	if now.Sub(n.lastAlarm) < alarmPushInterval {
		return false
	}
	n.lastAlarm = now
	return true
}

func (n *PushoverNotifier) SessionEnded(rep *alarm.SessionReport) {
	n.send(pushover.NewMessageWithTitle(rep.String(), "Battery session ended"))
}

func (n *PushoverNotifier) send(msg *pushover.Message) {
	if _, err := n.push.SendMessage(msg, n.recipient); err != nil {
		n.log.Error("Error sending pushover message: ", err)
	}
}
