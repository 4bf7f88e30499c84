package handler

import (
	"github.com/sirupsen/logrus"

	"github.com/resttable/resttable/core"
)

type EventType string

const (
	EventCallStateChanged         EventType = "call_state_changed"
	EventCurrentConnectionChanged EventType = "current_connection_changed"
	EventConnectionChecked        EventType = "connection_checked"
)

// Event is passed to every registered listener.
type Event struct {
	Type         EventType
	ConnectionID core.ConnectionID
	// Call is set for call events.
	Call *core.Call
	// Health is set for connection checks.
	Health *HealthStatus
}

type eventBus struct {
	log       logrus.FieldLogger
	listeners []func(*Event)
}

func (eb *eventBus) trigger(event *Event) {
	for _, fn := range eb.listeners {
		fn(event)
	}
}

func (eb *eventBus) CallStateChanged(connID core.ConnectionID, call *core.Call) {
	fields := logrus.Fields{
		"call":  call.GetID(),
		"op":    call.GetQuery().Operation.String(),
		"state": call.GetState().String(),
	}
	if call.GetState().IsFinal() {
		fields["time_taken"] = call.GetTimeTaken()
	}
	eb.log.WithFields(fields).Debug("call state changed")

	eb.trigger(&Event{
		Type:         EventCallStateChanged,
		ConnectionID: connID,
		Call:         call,
	})
}

func (eb *eventBus) CurrentConnectionChanged(id core.ConnectionID) {
	eb.trigger(&Event{
		Type:         EventCurrentConnectionChanged,
		ConnectionID: id,
	})
}

func (eb *eventBus) ConnectionChecked(status *HealthStatus) {
	entry := eb.log.WithFields(logrus.Fields{
		"connection": status.Name,
		"healthy":    status.OK,
	})
	if status.Err != nil {
		entry = entry.WithError(status.Err)
	}
	entry.Debug("connection checked")

	eb.trigger(&Event{
		Type:         EventConnectionChecked,
		ConnectionID: status.ID,
		Health:       status,
	})
}
