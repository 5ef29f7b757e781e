// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationDispatchedEvent is published after a push or email has been
// handed to its provider. It carries enough information for downstream
// consumers to log, audit, or trigger analytics without querying the
// primary database. Delivery of the event is best-effort.
type NotificationDispatchedEvent struct {
    EventID      string `json:"event_id"`
    UserID       string `json:"user_id,omitempty"`
    Channel      string `json:"channel"` // fcm | expo | email
    Target       string `json:"target"`  // token, topic or recipient address
    Title        string `json:"title,omitempty"`
    Type         string `json:"type,omitempty"`
    DispatchedAt string `json:"dispatched_at"`
}
