package model

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DTOProxyRequest is the tester payload: an outbound request to forward.
type DTOProxyRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url" validate:"required"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
}

// DTOProxyResponse is the tester result for a request that reached the target.
type DTOProxyResponse struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Data       string            `json:"data"`
	Timing     int64             `json:"timing"`
}

// DTOPreviewRequest asks the template engine to render a value.
type DTOPreviewRequest struct {
	Template json.RawMessage `json:"template"`
}

// DTOImportRequest is a batch of endpoint definitions. Items stay raw so each
// one is decoded and validated on its own.
type DTOImportRequest struct {
	Endpoints []json.RawMessage `json:"endpoints"`
}

// DTOImportFailure reports why one item of an import batch was rejected.
type DTOImportFailure struct {
	Index  int      `json:"index"`
	Errors []string `json:"errors"`
}

// DTOImportResponse summarises an import batch.
type DTOImportResponse struct {
	Imported []Endpoint        `json:"imported"`
	Failed   []DTOImportFailure `json:"failed"`
}

// Claims are carried by admin bearer tokens.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// DTOTokenResponse is printed by the token command.
type DTOTokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
