// Package notify carries notification intents out of the engine. The engine
// only records that a notification is requested; delivery belongs to an
// external collaborator behind the Dispatcher interface.
package notify

import "log/slog"

// Priority of a notification request
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification is a fire-and-forget request to the notification collaborator.
type Notification struct {
	Metadata map[string]string `json:"metadata,omitempty"`
	UserID   string            `json:"user_id"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Priority Priority          `json:"priority"`
}

// Dispatcher executes notification intents.
type Dispatcher interface {
	Dispatch(n Notification)
}

// LogDispatcher records intents to the log. It stands in for the real
// delivery transport, which is out of scope for the engine.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a dispatcher that logs every intent.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the notification request.
func (d *LogDispatcher) Dispatch(n Notification) {
	d.logger.Info("notification requested",
		"user_id", n.UserID,
		"title", n.Title,
		"priority", n.Priority,
	)
}

var _ Dispatcher = (*LogDispatcher)(nil)
