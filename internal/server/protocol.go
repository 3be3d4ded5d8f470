package server

import "github.com/zeusync/virtualcam/internal/core/controls"

// Actions of the control protocol. Clients send set and get; the server
// sends snapshot, update and error.
const (
	ActionSet      = "set"
	ActionGet      = "get"
	ActionSnapshot = "snapshot"
	ActionUpdate   = "update"
	ActionError    = "error"
)

// Message is the JSON frame exchanged over /ws.
type Message struct {
	Action   string             `json:"action"`
	Name     string             `json:"name,omitempty"`
	Value    any                `json:"value,omitempty"`
	Controls []controls.Control `json:"controls,omitempty"`
	Error    string             `json:"error,omitempty"`
}
