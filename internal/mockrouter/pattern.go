package mockrouter

import (
	"fmt"
	"strings"
)

type segmentKind int

const (
	segLiteral segmentKind = iota
	segParam
	segWildcard
)

type segment struct {
	kind  segmentKind
	value string // lowercased literal, or the parameter name
}

// pattern is a compiled endpoint path. Literal segments match
// case-insensitively, ":name" and "{name}" match one non-empty segment, and a
// trailing "*" matches the rest of the path.
type pattern struct {
	raw      string
	segments []segment
}

func compilePattern(path string) (pattern, error) {
	if !strings.HasPrefix(path, "/") {
		return pattern{}, fmt.Errorf("path %q must start with /", path)
	}
	parts := splitPath(path)
	p := pattern{raw: path, segments: make([]segment, 0, len(parts))}

	for i, part := range parts {
		switch {
		case part == "*":
			if i != len(parts)-1 {
				return pattern{}, fmt.Errorf("path %q: wildcard must be the last segment", path)
			}
			p.segments = append(p.segments, segment{kind: segWildcard})
		case strings.HasPrefix(part, ":") && len(part) > 1:
			p.segments = append(p.segments, segment{kind: segParam, value: part[1:]})
		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") && len(part) > 2:
			p.segments = append(p.segments, segment{kind: segParam, value: part[1 : len(part)-1]})
		default:
			p.segments = append(p.segments, segment{kind: segLiteral, value: strings.ToLower(part)})
		}
	}
	return p, nil
}

// match reports whether path matches and returns the captured parameters.
func (p pattern) match(path string) (map[string]string, bool) {
	parts := splitPath(path)
	var params map[string]string

	for i, seg := range p.segments {
		if seg.kind == segWildcard {
			if params == nil {
				params = map[string]string{}
			}
			params["*"] = strings.Join(parts[i:], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch seg.kind {
		case segLiteral:
			if strings.ToLower(parts[i]) != seg.value {
				return nil, false
			}
		case segParam:
			if parts[i] == "" {
				return nil, false
			}
			if params == nil {
				params = map[string]string{}
			}
			params[seg.value] = parts[i]
		}
	}
	if len(parts) != len(p.segments) {
		return nil, false
	}
	return params, true
}

// splitPath splits on "/" ignoring the leading and a single trailing slash.
// Empty interior segments are kept so "/a//b" does not match "/a/b".
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
