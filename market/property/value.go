// Package property implements the typed demand/offer property model used
// by the negotiator: a flat namespace of dotted property names mapped to
// tagged values, with wildcard string matching and ordering defined only
// for the variants that support it.
package property

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

// Kind tags the variant carried by a Value.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindNumber
	KindDateTime
	KindVersion
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindDateTime:
		return "datetime"
	case KindVersion:
		return "version"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the property grammar described in
// SPEC_FULL.md §4.B. Only one of the typed fields is meaningful,
// selected by Kind.
type Value struct {
	Kind    Kind
	Str     string
	Bool    bool
	Number  float64
	Time    time.Time
	Version string
	List    []Value
}

func String(s string) Value  { return Value{Kind: KindString, Str: s} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Number(n float64) Value { return Value{Kind: KindNumber, Number: n} }
func DateTime(t time.Time) Value {
	return Value{Kind: KindDateTime, Time: t.UTC()}
}
func Version(v string) Value  { return Value{Kind: KindVersion, Version: v} }
func List(vs []Value) Value   { return Value{Kind: KindList, List: vs} }

// wildcardCache memoizes compiled patterns; the pipeline re-evaluates the
// same constraint expressions across many proposals.
var wildcardCache sync.Map // string -> *regexp.Regexp

func compileWildcard(pattern string) (*regexp.Regexp, error) {
	if cached, ok := wildcardCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	var buf []byte
	buf = append(buf, '^')
	for _, r := range pattern {
		if r == '*' {
			buf = append(buf, '.', '*')
			continue
		}
		buf = append(buf, []byte(regexp.QuoteMeta(string(r)))...)
	}
	buf = append(buf, '$')
	re, err := regexp.Compile(string(buf))
	if err != nil {
		return nil, err
	}
	wildcardCache.Store(pattern, re)
	return re, nil
}

// Eq reports whether v equals other. String comparison supports a `*`
// wildcard on the left-hand operand, compiled to an anchored regexp.
// Unsupported cross-kind comparisons return false, never an error.
func (v Value) Eq(other Value) bool {
	if v.Kind == KindString && other.Kind == KindString {
		if !containsWildcard(v.Str) {
			return v.Str == other.Str
		}
		re, err := compileWildcard(v.Str)
		if err != nil {
			return false
		}
		return re.MatchString(other.Str)
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == other.Bool
	case KindNumber:
		return v.Number == other.Number
	case KindDateTime:
		return v.Time.Equal(other.Time)
	case KindVersion:
		return v.Version == other.Version
	case KindList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Eq(other.List[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func containsWildcard(s string) bool {
	for _, r := range s {
		if r == '*' {
			return true
		}
	}
	return false
}

// compare returns the sign of v relative to other (-1, 0 or 1), and
// whether this Kind pair supports ordering at all. Per SPEC_FULL.md
// §4.B, ordering is defined only for {String, Number, DateTime}.
func (v Value) compare(other Value) (int, bool) {
	if v.Kind != other.Kind {
		return 0, false
	}
	switch v.Kind {
	case KindString:
		switch {
		case v.Str < other.Str:
			return -1, true
		case v.Str > other.Str:
			return 1, true
		default:
			return 0, true
		}
	case KindNumber:
		switch {
		case v.Number < other.Number:
			return -1, true
		case v.Number > other.Number:
			return 1, true
		default:
			return 0, true
		}
	case KindDateTime:
		switch {
		case v.Time.Before(other.Time):
			return -1, true
		case v.Time.After(other.Time):
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// Lt, Le, Gt, Ge report ordering comparisons; they return false (not an
// error) for variants that do not support ordering.
func (v Value) Lt(other Value) bool {
	c, ok := v.compare(other)
	return ok && c < 0
}

func (v Value) Le(other Value) bool {
	c, ok := v.compare(other)
	return ok && c <= 0
}

func (v Value) Gt(other Value) bool {
	c, ok := v.compare(other)
	return ok && c > 0
}

func (v Value) Ge(other Value) bool {
	c, ok := v.compare(other)
	return ok && c >= 0
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case KindDateTime:
		return v.Time.Format(time.RFC3339)
	case KindVersion:
		return v.Version
	case KindList:
		return fmt.Sprintf("%v", v.List)
	default:
		return ""
	}
}
