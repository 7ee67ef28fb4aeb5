// Package apierror turns the loosely shaped error bodies returned by the
// storage API into a single human readable message.
//
// Bodies are modelled as a Payload: a Mapping (ordered keys), a Sequence or a
// Scalar. Key order matters because the field-error rule reports the first
// offending field, so Mapping keeps entries in the order they were decoded.
package apierror

import (
	"sort"
	"strconv"
)

// Kind identifies the shape of a Payload.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Payload is any decoded error body. The set of implementations is closed:
// *Mapping, Sequence and Scalar.
type Payload interface {
	Kind() Kind
	payload()
}

// Entry is one key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value Payload
}

// Mapping is an object with ordered keys.
type Mapping struct {
	entries []Entry
	index   map[string]int
}

// Map builds a Mapping from entries. A repeated key keeps its first position
// and its last value.
func Map(entries ...Entry) *Mapping {
	m := &Mapping{}
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

// Field is shorthand for an Entry literal.
func Field(key string, value Payload) Entry {
	return Entry{Key: key, Value: value}
}

func (*Mapping) Kind() Kind { return KindMapping }
func (*Mapping) payload()   {}

// Set adds or replaces key.
func (m *Mapping) Set(key string, value Payload) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (Payload, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns the entries in key order. The slice must not be modified.
func (m *Mapping) Entries() []Entry {
	if m == nil {
		return nil
	}
	return m.entries
}

// Sequence is an ordered list of payloads.
type Sequence []Payload

// List builds a Sequence.
func List(items ...Payload) Sequence {
	return Sequence(items)
}

func (Sequence) Kind() Kind { return KindSequence }
func (Sequence) payload()   {}

// Scalar holds a string, number, boolean or null. Numbers keep their decoded
// text so they print exactly as the server sent them.
type Scalar struct {
	kind Kind
	text string
}

// String returns a string scalar.
func String(s string) Scalar {
	return Scalar{kind: KindString, text: s}
}

// Number returns a number scalar.
func Number(f float64) Scalar {
	return Scalar{kind: KindNumber, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Bool returns a boolean scalar.
func Bool(b bool) Scalar {
	return Scalar{kind: KindBool, text: strconv.FormatBool(b)}
}

// Null returns the null scalar.
func Null() Scalar {
	return Scalar{kind: KindNull, text: "null"}
}

func (s Scalar) Kind() Kind { return s.kind }
func (Scalar) payload()     {}

// Text returns the scalar's textual form.
func (s Scalar) Text() string {
	return s.text
}

// truthy mirrors how a loosely typed client tests a field before using it:
// empty strings, zero, false and null do not count; any mapping or sequence
// does.
func truthy(p Payload) bool {
	switch v := p.(type) {
	case nil:
		return false
	case Scalar:
		switch v.kind {
		case KindString:
			return v.text != ""
		case KindBool:
			return v.text == "true"
		case KindNumber:
			f, err := strconv.ParseFloat(v.text, 64)
			return err == nil && f != 0
		}
		return false
	case *Mapping:
		return v != nil
	case Sequence:
		return v != nil
	}
	return false
}

// fromValue converts decoded Go values (as produced by encoding/json into an
// any) into a Payload. Map keys are sorted since Go maps have no order.
func fromValue(v any) Payload {
	switch x := v.(type) {
	case nil:
		return Null()
	case Payload:
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Scalar{kind: KindNumber, text: strconv.Itoa(x)}
	case int64:
		return Scalar{kind: KindNumber, text: strconv.FormatInt(x, 10)}
	case interface{ String() string }:
		// json.Number and friends.
		if _, err := strconv.ParseFloat(x.String(), 64); err == nil {
			return Scalar{kind: KindNumber, text: x.String()}
		}
		return String(x.String())
	case []string:
		seq := make(Sequence, len(x))
		for i, s := range x {
			seq[i] = String(s)
		}
		return seq
	case []any:
		seq := make(Sequence, len(x))
		for i, item := range x {
			seq[i] = fromValue(item)
		}
		return seq
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := &Mapping{}
		for _, k := range keys {
			m.Set(k, fromValue(x[k]))
		}
		return m
	}
	return Null()
}
