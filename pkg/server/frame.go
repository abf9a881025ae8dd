package server

import (
	"github.com/vango-dev/statesync/pkg/statesync"
	"github.com/vango-dev/statesync/pkg/value"
)

// FrameType identifies a websocket frame.
type FrameType string

const (
	FrameState      FrameType = "state"
	FrameURLReplace FrameType = "url_replace"
	FrameError      FrameType = "error"
	FrameShutdown   FrameType = "shutdown"
	FrameUpdate     FrameType = "update"
	FrameReset      FrameType = "reset"
)

// Frame is a JSON websocket message in either direction.
type Frame struct {
	Type         FrameType        `json:"type"`
	Status       statesync.Status `json:"status,omitempty"`
	State        *value.Object    `json:"state,omitempty"`
	ShareableURL string           `json:"shareableUrl,omitempty"`
	URL          string           `json:"url,omitempty"`
	Partial      *value.Object    `json:"partial,omitempty"`
	Error        string           `json:"error,omitempty"`
}
