package apierror

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned by Parse for bodies that are not JSON.
var ErrInvalidJSON = errors.New("apierror: body is not valid JSON")

// Parse decodes a JSON body into a Payload, keeping object keys in document
// order.
func Parse(data []byte) (Payload, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// FromText wraps a non-JSON body the way the API's own error pages are
// reported: {"detail": text}.
func FromText(text string) Payload {
	return Map(Field("detail", String(text)))
}

// Code returns the string "code" field of a mapping payload, if any.
func Code(p Payload) string {
	m, ok := p.(*Mapping)
	if !ok {
		return ""
	}
	v, ok := m.Get("code")
	if !ok {
		return ""
	}
	if s, ok := v.(Scalar); ok && s.kind == KindString {
		return s.text
	}
	return ""
}

func fromResult(r gjson.Result) Payload {
	switch {
	case r.IsObject():
		m := &Mapping{}
		r.ForEach(func(key, value gjson.Result) bool {
			m.Set(key.String(), fromResult(value))
			return true
		})
		return m
	case r.IsArray():
		items := r.Array()
		seq := make(Sequence, 0, len(items))
		for _, item := range items {
			seq = append(seq, fromResult(item))
		}
		return seq
	}
	switch r.Type {
	case gjson.String:
		return String(r.Str)
	case gjson.Number:
		return Scalar{kind: KindNumber, text: strings.TrimSpace(r.Raw)}
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	}
	return Null()
}
