package model

import "time"

const (
	RequestPending   = "pending"
	RequestCompleted = "completed"
)

// RequestLogEntry is one HTTP transaction against the mock surface.
// The ID is assigned at intake and is shared by the intake and completion events.
type RequestLogEntry struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Method       string            `json:"method"`
	Path         string            `json:"path"`
	FullPath     string            `json:"fullPath"`
	Headers      map[string]string `json:"headers"`
	Query        map[string]any    `json:"query"`
	Body         any               `json:"body"`
	IP           string            `json:"ip"`
	EndpointID   string            `json:"endpointId,omitempty"`
	EndpointName string            `json:"endpointName,omitempty"`
	Status       string            `json:"status"`
	Response     *CapturedResponse `json:"response"`
	Duration     *int64            `json:"duration"`
}

// CapturedResponse is the response half of a completed transaction.
type CapturedResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
}

// TruncatedBody replaces a body whose serialized form exceeds the capture limit.
type TruncatedBody struct {
	Truncated      bool   `json:"_truncated"`
	OriginalLength int    `json:"_originalLength"`
	Preview        string `json:"preview"`
}
