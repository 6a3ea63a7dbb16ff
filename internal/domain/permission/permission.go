// Package permission defines per-agent action grants and their conditions.
package permission

import "time"

// Permission grants an agent the right to perform an action on a resource,
// optionally restricted by a condition expression.
type Permission struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Condition string    `json:"condition"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest carries the fields needed to grant a permission.
type CreateRequest struct {
	AgentID   string `json:"agent_id"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	Condition string `json:"condition"`
}
