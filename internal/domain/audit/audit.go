// Package audit defines the append-only authorization log.
package audit

import "time"

// LogEntry is one immutable record of a terminal authorization outcome.
type LogEntry struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryFilter narrows a log query. Zero values mean "no bound".
// Time bounds are inclusive.
type QueryFilter struct {
	AgentID string
	Start   time.Time
	End     time.Time
}
