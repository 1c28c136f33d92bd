package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventBuilt       EventType = "built"
	EventFailed      EventType = "failed"
	EventRemoteFetch EventType = "remote_fetch"
	EventAction      EventType = "action"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// BuildEvent is emitted once per top-level build.
type BuildEvent struct {
	EventBase
	NodeType string `json:"node_type,omitempty"`
	Node     Node   `json:"-"`
	Err      error  `json:"-"`
}

// FetchEvent is emitted for every remote hop resolved during a build.
type FetchEvent struct {
	EventBase
	URL string `json:"url"`
	Hop int    `json:"hop"`
}

// ActionEvent is emitted every time a bound action runs.
type ActionEvent struct {
	EventBase
	ActionType string `json:"actiontype"`
	Event      string `json:"event"`
	Err        error  `json:"-"`
}

// LifecycleHooks defines callbacks for builder and dispatcher observability.
type LifecycleHooks struct {
	OnBuilt       func(context.Context, *BuildEvent)
	OnFailed      func(context.Context, *BuildEvent)
	OnRemoteFetch func(context.Context, *FetchEvent)
	OnAction      func(context.Context, *ActionEvent)
}

// SessionRecord is the cached session token of one scheme+host+port prefix.
type SessionRecord struct {
	Host      string    `json:"host"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}
