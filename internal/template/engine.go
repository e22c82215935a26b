// Package template renders generator expressions embedded in response bodies.
//
// An expression has the shape {{faker.category.method(args)}}; the "faker."
// prefix is optional. Args is a comma-separated list of JSON literals. Rendering
// never fails: unknown generators and generator errors degrade to visible
// placeholder text.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/7sDream/geko"
	"go.uber.org/zap"
)

// expressionPattern matches {{faker.category.method(args)}} and the short
// {{category.method(args)}} form.
var expressionPattern = regexp.MustCompile(`\{\{(?:faker\.)?([a-zA-Z]+)\.([a-zA-Z]+)\((.*?)\)\}\}`)

// Engine substitutes generator expressions in strings and structured values.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	catalogue Catalogue
	logger    *zap.Logger
}

func New(c Catalogue, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{catalogue: c, logger: logger}
}

// Catalogue exposes the generator catalogue the engine resolves against.
func (e *Engine) Catalogue() Catalogue {
	return e.catalogue
}

// RenderString replaces every expression in s, left to right.
func (e *Engine) RenderString(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return expressionPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := expressionPattern.FindStringSubmatch(match)
		if len(sub) < 4 {
			return match
		}
		return e.evaluate(sub[1], sub[2], sub[3])
	})
}

// Render walks v and renders every string leaf. Maps and slices are copied;
// geko values, as produced by RenderJSON, are rewritten in place so their key
// order is kept. Other values pass through unchanged.
func (e *Engine) Render(v any) any {
	switch t := v.(type) {
	case string:
		return e.RenderString(t)
	case geko.ObjectItems:
		vals := t.Values()
		for i := range vals {
			t.SetValueByIndex(i, e.Render(vals[i]))
		}
		return t
	case geko.Array:
		for i := range t.List {
			t.List[i] = e.Render(t.List[i])
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = e.Render(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = e.Render(val)
		}
		return out
	default:
		return v
	}
}

// RenderJSON decodes raw JSON preserving object key order and renders it.
// Numbers stay json.Number so they re-encode with their original literal.
func (e *Engine) RenderJSON(raw []byte) (any, error) {
	v, err := geko.JSONUnmarshal(raw, geko.UseNumber(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	return e.Render(v), nil
}

func (e *Engine) evaluate(category, method, rawArgs string) (out string) {
	ref := "faker." + category + "." + method

	gen, ok := e.catalogue.Lookup(category, method)
	if !ok {
		e.logger.Warn("unknown generator", zap.String("generator", ref))
		return "[Unknown: " + ref + "]"
	}

	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("generator panicked", zap.String("generator", ref), zap.Any("panic", rec))
			out = "[Error: " + ref + "]"
		}
	}()

	v, err := gen(parseArgs(rawArgs))
	if err != nil {
		e.logger.Error("failed to generate value", zap.String("generator", ref), zap.Error(err))
		return "[Error: " + ref + "]"
	}
	return stringify(v)
}

// parseArgs reads the argument list as JSON literals, falling back to the
// raw text as a single string argument.
func parseArgs(raw string) []any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var args []any
	if err := json.Unmarshal([]byte("["+raw+"]"), &args); err != nil {
		return []any{raw}
	}
	return args
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
