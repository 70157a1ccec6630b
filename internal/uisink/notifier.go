package uisink

import (
	"github.com/sirupsen/logrus"

	"chainstate/internal/logging"
)

// NotificationStateID addresses user-facing notifications.
const NotificationStateID = "notification"

// Notification is the payload posted for warnings and errors.
type Notification struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Notifier logs user-facing problems and posts them to the UI.
type Notifier struct {
	sink Sink
	log  *logrus.Entry
}

// NewNotifier returns a notifier posting to sink. Nil arguments discard.
func NewNotifier(sink Sink, log *logrus.Entry) *Notifier {
	if sink == nil {
		sink = Discard{}
	}
	return &Notifier{sink: sink, log: logging.OrDiscard(log)}
}

func (n *Notifier) Warn(message string) {
	n.log.Warn(message)
	_ = Post(n.sink, NotificationStateID, Notification{Level: "warning", Message: message})
}

func (n *Notifier) Error(err error) {
	if err == nil {
		return
	}
	n.log.WithError(err).Error("operation failed")
	_ = Post(n.sink, NotificationStateID, Notification{Level: "error", Message: err.Error()})
}

func (n *Notifier) Info(message string) {
	n.log.Info(message)
	_ = Post(n.sink, NotificationStateID, Notification{Level: "info", Message: message})
}
