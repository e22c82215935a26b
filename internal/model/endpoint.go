package model

import (
	"encoding/json"
	"time"
)

// Method is the closed set of HTTP methods a mock endpoint may answer.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// Methods lists the supported methods in display order.
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete}

// ParseMethod resolves a method tag. Unknown tags report false.
func ParseMethod(s string) (Method, bool) {
	for _, m := range Methods {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Endpoint is a stored mock route definition.
type Endpoint struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Method    Method           `json:"method"`
	Path      string           `json:"path"`
	Enabled   bool             `json:"enabled"`
	Response  EndpointResponse `json:"response"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// EndpointResponse is the canned response served for an endpoint.
// Body holds any JSON value verbatim so object key order survives storage.
type EndpointResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Delay   int               `json:"delay"`
}

// Clone returns a deep copy of the endpoint.
func (e Endpoint) Clone() Endpoint {
	e.Response = e.Response.Clone()
	return e
}

// Clone returns a deep copy of the response configuration.
func (r EndpointResponse) Clone() EndpointResponse {
	if r.Headers != nil {
		headers := make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			headers[k] = v
		}
		r.Headers = headers
	}
	if r.Body != nil {
		r.Body = append(json.RawMessage(nil), r.Body...)
	}
	return r
}

// EndpointInput is the payload of a create or partial update. Nil fields
// were not provided. Response is kept raw so its shape can be validated.
type EndpointInput struct {
	Name     *string         `json:"name,omitempty"`
	Method   *string         `json:"method,omitempty"`
	Path     *string         `json:"path,omitempty"`
	Enabled  *bool           `json:"enabled,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// PortableEndpoint is the export shape, free of server-assigned fields.
type PortableEndpoint struct {
	Name     string           `json:"name"`
	Method   Method           `json:"method"`
	Path     string           `json:"path"`
	Enabled  bool             `json:"enabled"`
	Response EndpointResponse `json:"response"`
}
