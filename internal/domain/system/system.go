// Package system defines global safety state, currently the kill switch.
package system

import "time"

// KillSwitchKey is the singleton row key for the kill switch state.
const KillSwitchKey = "system_kill_switch"

// State is the persisted value of a system-wide flag.
type State struct {
	Key       string    `json:"key"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}
