package model

import (
	"encoding/json"
	"time"
)

// ArchivedRequest is the row written to the request_history table for a
// completed transaction.
type ArchivedRequest struct {
	ID                 string          `json:"id"`
	ExecutedAt         time.Time       `json:"executed_at"`
	EndpointID         *string         `json:"endpoint_id"`
	RequestMethod      string          `json:"request_method"`
	RequestURL         string          `json:"request_url"`
	RequestHeaders     json.RawMessage `json:"request_headers"`
	RequestBody        *string         `json:"request_body"`
	ResponseStatusCode int             `json:"response_status_code"`
	ResponseHeaders    json.RawMessage `json:"response_headers"`
	ResponseBody       *string         `json:"response_body"`
	DurationMs         int64           `json:"duration_ms"`
	ClientIP           string          `json:"client_ip"`
}
