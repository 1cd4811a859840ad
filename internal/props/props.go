// Package props implements the declarative field-mapping layer used to
// pull named fields out of a source property bag. Source systems allow
// user-renamed properties, so every logical field carries a list of
// candidate names and the first present candidate of the expected kind
// wins.
package props

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the runtime-checked type of a bag value.
type Kind string

const (
	KindText   Kind = "text"
	KindBool   Kind = "bool"
	KindList   Kind = "list"
	KindFiles  Kind = "files"
	KindDate   Kind = "date"
	KindNumber Kind = "number"
)

// Value is one typed property. Only the field matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Text   string
	Bool   bool
	List   []string
	Files  []string
	Date   time.Time
	Number float64
}

func Text(s string) Value     { return Value{Kind: KindText, Text: s} }
func Bool(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func List(v ...string) Value  { return Value{Kind: KindList, List: v} }
func Files(v ...string) Value { return Value{Kind: KindFiles, Files: v} }
func Date(t time.Time) Value  { return Value{Kind: KindDate, Date: t} }
func Number(n float64) Value  { return Value{Kind: KindNumber, Number: n} }

// Bag is a source property bag. Lookup by candidate name is
// case-insensitive.
type Bag map[string]Value

func (b Bag) lookup(name string) (Value, bool) {
	if v, ok := b[name]; ok {
		return v, true
	}
	for key, v := range b {
		if strings.EqualFold(key, name) {
			return v, true
		}
	}
	return Value{}, false
}

var timeZero time.Time

// ErrRequiredField rejects a whole document when a mapping entry marked
// required cannot be resolved.
var ErrRequiredField = errors.New("required field missing")

// Mapping binds one or more source property names to a logical field.
// Candidate order is the tie-break: the first candidate present in the
// bag with the expected kind wins.
type Mapping struct {
	Candidates []string
	Kind       Kind
	Default    Value
	Required   bool
}

// Resolve scans the bag for the mapping's candidates in declared order.
// A present value of the wrong kind is skipped, with two exceptions:
// bool-kind mappings coerce the strings "true"/"false" (any case), and
// date-kind mappings coerce RFC 3339 or YYYY-MM-DD strings. When
// nothing matches, the default is returned, unless the mapping is
// required, in which case ErrRequiredField is returned.
func Resolve(bag Bag, m Mapping) (Value, error) {
	for _, name := range m.Candidates {
		v, ok := bag.lookup(name)
		if !ok {
			continue
		}
		if v.Kind == m.Kind {
			return v, nil
		}
		if m.Kind == KindBool && v.Kind == KindText {
			switch strings.ToLower(strings.TrimSpace(v.Text)) {
			case "true":
				return Bool(true), nil
			case "false":
				return Bool(false), nil
			}
		}
		if m.Kind == KindDate && v.Kind == KindText {
			if t, ok := parseDate(v.Text); ok {
				return Date(t), nil
			}
		}
	}
	if m.Required {
		return Value{}, fmt.Errorf("%w: %s", ErrRequiredField, strings.Join(m.Candidates, "/"))
	}
	return m.Default, nil
}

// parseDate accepts the timestamp shapes YAML front matter carries as
// plain strings.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ResolveText, ResolveBool, ResolveList and ResolveFiles are shorthands
// for the common kinds.

func ResolveText(bag Bag, m Mapping) (string, error) {
	v, err := Resolve(bag, m)
	return v.Text, err
}

func ResolveBool(bag Bag, m Mapping) (bool, error) {
	v, err := Resolve(bag, m)
	return v.Bool, err
}

func ResolveList(bag Bag, m Mapping) ([]string, error) {
	v, err := Resolve(bag, m)
	return v.List, err
}

func ResolveFiles(bag Bag, m Mapping) ([]string, error) {
	v, err := Resolve(bag, m)
	return v.Files, err
}
