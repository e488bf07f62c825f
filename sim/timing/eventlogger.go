package timing

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/flowsim/sim/hooking"
)

// EventLogger is a hook that writes raised event instances into a logrus
// logger. Unless configured to log everything, only instances created with
// WithLog are written.
type EventLogger struct {
	logger *logrus.Logger
	all    bool
}

// NewEventLogger returns a new EventLogger which writes into the logger.
func NewEventLogger(logger *logrus.Logger) *EventLogger {
	h := new(EventLogger)

	h.logger = logger

	return h
}

// LogAll makes the logger write every instance.
func (h *EventLogger) LogAll() *EventLogger {
	h.all = true
	return h
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosAfterEvent {
		return
	}

	inst, ok := ctx.Item.(*EventInstance)
	if !ok {
		return
	}

	if !h.all && !inst.Logged() {
		return
	}

	entry := h.logger.WithFields(logrus.Fields{
		"time":     ctx.Now,
		"event":    inst.Event().Name(),
		"priority": inst.Priority().String(),
		"handlers": inst.HandlerCount(),
	})

	if err, isErr := ctx.Detail.(error); isErr && err != nil {
		entry.WithError(err).Warn("event failed")
		return
	}

	entry.Debug("event raised")
}
