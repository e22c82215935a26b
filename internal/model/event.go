package model

// EventType names a frame on the live event stream.
type EventType string

const (
	EventRequestNew      EventType = "request:new"
	EventRequestComplete EventType = "request:complete"
	EventEndpointsSync   EventType = "endpoints:sync"

	// Observer-to-server frames.
	EventSubscribeLogs   EventType = "subscribe:logs"
	EventUnsubscribeLogs EventType = "unsubscribe:logs"
)

// Event is a single frame on the live event stream.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data,omitempty"`
}

// IsLogEvent reports whether the event belongs to the request-log subscription.
func (e Event) IsLogEvent() bool {
	return e.Type == EventRequestNew || e.Type == EventRequestComplete
}
