// Package agent defines the registered AI agent entity.
package agent

import "time"

// Status is the lifecycle state of an agent.
type Status string

// Agent statuses.
const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Valid reports whether s is a known agent status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusDisabled
}

// Agent is a registered AI agent that may request actions.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the agent is allowed to act at all.
func (a *Agent) Active() bool {
	return a.Status == StatusActive
}

// CreateRequest carries the fields needed to register an agent.
type CreateRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner string `json:"owner"`
}
