package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/suar-net/suar-playground/internal/model"
)

const (
	MinStatus = 100
	MaxStatus = 599
	MaxDelay  = 30000
)

var validate = validator.New()

// endpointFields is the normalized view of an input that the validator checks.
// Only the fields named in a partial check are validated.
type endpointFields struct {
	Name   string `validate:"required"`
	Method string `validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Path   string `validate:"required,startswith=/"`
	Status int    `validate:"gte=100,lte=599"`
	Delay  int    `validate:"gte=0,lte=30000"`
}

// Message order mirrors the order fields appear in the payload.
var messageOrder = []string{"Name", "Method", "Path", "Response", "Status", "Headers", "Delay"}

func fieldMessage(field, tag string) string {
	switch field {
	case "Name":
		return "Name is required and must be a string"
	case "Method":
		return "Method must be one of: " + methodList()
	case "Path":
		if tag == "startswith" {
			return "Path must start with /"
		}
		return "Path is required and must be a string"
	case "Response":
		return "Response must be an object"
	case "Status":
		return "Response status must be a valid HTTP status code (100-599)"
	case "Headers":
		return "Response headers must be an object of strings"
	case "Delay":
		return "Response delay must be between 0 and 30000ms"
	}
	return field + " is invalid"
}

func methodList() string {
	names := make([]string, len(model.Methods))
	for i, m := range model.Methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// responsePatch is the provided subset of a response configuration.
type responsePatch struct {
	status     *int
	delay      *int
	headers    map[string]string
	hasHeaders bool
	body       json.RawMessage
}

func (p *responsePatch) applyTo(r *model.EndpointResponse) {
	if p == nil {
		return
	}
	if p.status != nil {
		r.Status = *p.status
	}
	if p.delay != nil {
		r.Delay = *p.delay
	}
	if p.hasHeaders {
		r.Headers = p.headers
	}
	if p.body != nil {
		r.Body = p.body
	}
}

// normalized is a validated input ready to be merged into an endpoint.
type normalized struct {
	name     *string
	method   *model.Method
	path     *string
	enabled  *bool
	response *responsePatch
}

// validateInput checks an input and collects every failure. When partial is
// false name, method and path are required.
func validateInput(in model.EndpointInput, partial bool) (normalized, []string) {
	var (
		n      = normalized{enabled: in.Enabled}
		fields endpointFields
		check  []string
		failed = map[string]string{}
	)

	if !partial || in.Name != nil {
		if in.Name != nil {
			fields.Name = strings.TrimSpace(*in.Name)
		}
		n.name = &fields.Name
		check = append(check, "Name")
	}
	if !partial || in.Method != nil {
		if in.Method != nil {
			fields.Method = *in.Method
		}
		check = append(check, "Method")
	}
	if !partial || in.Path != nil {
		if in.Path != nil {
			fields.Path = strings.TrimSpace(*in.Path)
		}
		n.path = &fields.Path
		check = append(check, "Path")
	}

	if len(in.Response) > 0 {
		patch, errs := parseResponse(in.Response)
		for field := range errs {
			failed[field] = fieldMessage(field, "")
		}
		if patch != nil {
			if patch.status != nil {
				fields.Status = *patch.status
				check = append(check, "Status")
			}
			if patch.delay != nil {
				fields.Delay = *patch.delay
				check = append(check, "Delay")
			}
		}
		n.response = patch
	}

	if len(check) > 0 {
		if err := validate.StructPartial(fields, check...); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				failed["Response"] = err.Error()
			}
			for _, fe := range verrs {
				if _, seen := failed[fe.Field()]; !seen {
					failed[fe.Field()] = fieldMessage(fe.Field(), fe.Tag())
				}
			}
		}
	}

	if len(failed) > 0 {
		messages := make([]string, 0, len(failed))
		for _, field := range messageOrder {
			if msg, ok := failed[field]; ok {
				messages = append(messages, msg)
			}
		}
		return normalized{}, messages
	}

	if in.Method != nil || !partial {
		m, _ := model.ParseMethod(fields.Method)
		n.method = &m
	}
	return n, nil
}

// parseResponse decodes a provided response object. The returned map keys
// name the fields that could not be decoded.
func parseResponse(raw json.RawMessage) (*responsePatch, map[string]bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, map[string]bool{"Response": true}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, map[string]bool{"Response": true}
	}

	patch := &responsePatch{}
	errs := map[string]bool{}

	if v, ok := fields["status"]; ok {
		if n, ok := toStatus(v); ok {
			patch.status = &n
		} else {
			errs["Status"] = true
		}
	}
	if v, ok := fields["delay"]; ok {
		if n, ok := toDelay(v); ok {
			patch.delay = &n
		} else {
			errs["Delay"] = true
		}
	}
	if v, ok := fields["headers"]; ok {
		var headers map[string]string
		if err := json.Unmarshal(v, &headers); err != nil {
			errs["Headers"] = true
		} else {
			patch.headers = headers
			patch.hasHeaders = true
		}
	}
	if v, ok := fields["body"]; ok {
		patch.body = append(json.RawMessage(nil), v...)
	}
	return patch, errs
}

// toNumber coerces a JSON scalar the way a loose numeric conversion would:
// numbers and numeric strings convert, null and blank strings are zero.
// Non-numeric values are rejected.
func toNumber(raw json.RawMessage) (float64, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}

	var f float64
	switch t := v.(type) {
	case nil:
		f = 0
	case float64:
		f = t
	case bool:
		if t {
			f = 1
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			break
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return f, true
}

// toStatus accepts whole numbers only.
func toStatus(raw json.RawMessage) (int, bool) {
	f, ok := toNumber(raw)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// toDelay rounds fractional milliseconds. A negative fraction stays negative
// so the range check still rejects it.
func toDelay(raw json.RawMessage) (int, bool) {
	f, ok := toNumber(raw)
	if !ok {
		return 0, false
	}
	n := int(math.Round(f))
	if f < 0 && n == 0 {
		n = -1
	}
	return n, true
}
