package property

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseAssignments parses a slice of "name[=value]" tokens into a Set,
// following the grammar in SPEC_FULL.md §4.B: quoted strings, RFC3339
// timestamps, booleans, bracketed lists, else a number if parseable,
// else a bare string.
func ParseAssignments(tokens []string) (Set, error) {
	out := make(Set, len(tokens))
	for _, tok := range tokens {
		name, raw, hasValue := strings.Cut(tok, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("property: empty name in token %q", tok)
		}
		if !hasValue {
			out[name] = Property{Explicit: false}
			continue
		}
		v, err := ParseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("property: parsing %q: %w", tok, err)
		}
		out[name] = Property{Explicit: true, Value: v}
	}
	return out, nil
}

// ParseValue parses a single literal per the property value grammar.
func ParseValue(raw string) (Value, error) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"':
		return String(trimmed[1 : len(trimmed)-1]), nil
	case trimmed == "true":
		return Bool(true), nil
	case trimmed == "false":
		return Bool(false), nil
	case len(trimmed) >= 2 && trimmed[0] == '[' && trimmed[len(trimmed)-1] == ']':
		inner := trimmed[1 : len(trimmed)-1]
		if strings.TrimSpace(inner) == "" {
			return List(nil), nil
		}
		parts := strings.Split(inner, ",")
		vals := make([]Value, 0, len(parts))
		for _, p := range parts {
			elem, err := ParseValue(strings.TrimSpace(p))
			if err != nil {
				return Value{}, err
			}
			vals = append(vals, elem)
		}
		return List(vals), nil
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return DateTime(t), nil
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Number(n), nil
	}
	return String(trimmed), nil
}
