package apierror

import "strings"

const (
	// TokenNotValid is the code the API uses for a rejected bearer token.
	TokenNotValid = "token_not_valid"

	authErrorMessage      = "Authentication error"
	unserializableMessage = "An error occurred with the request"
	unknownMessage        = "An unknown error occurred"
)

// Extract picks the most useful message out of an error body. It never
// panics and always returns a non-empty string. The rules are tried in a
// fixed order and the first match wins:
//
//  1. token_not_valid code: first messages[].message, else detail, else a
//     generic authentication message
//  2. detail
//  3. message
//  4. non_field_errors joined with ", "
//  5. the first field holding an error: "key: first" for a list, "key: value"
//     for a string, "key.nested: first" for a mapping of lists
//  6. for a list body, its first string, or the message/detail of its first
//     mapping
//  7. the body re-encoded as JSON
//  8. a generic message for scalars
func Extract(p Payload) string {
	if m, ok := p.(*Mapping); ok && m != nil {
		if msg, ok := fromMapping(m); ok {
			return msg
		}
	}
	if seq, ok := p.(Sequence); ok {
		if msg, ok := fromSequence(seq); ok {
			return msg
		}
	}
	return fallback(p)
}

// IsGeneric reports whether msg is one of the catch-all messages Extract
// returns when it found nothing specific.
func IsGeneric(msg string) bool {
	return msg == unknownMessage || msg == unserializableMessage
}

func fromMapping(m *Mapping) (string, bool) {
	if Code(m) == TokenNotValid {
		return tokenMessage(m), true
	}
	if v, ok := m.Get("detail"); ok && truthy(v) {
		return text(v), true
	}
	if v, ok := m.Get("message"); ok && truthy(v) {
		return text(v), true
	}
	if v, ok := m.Get("non_field_errors"); ok {
		if seq, ok := v.(Sequence); ok && len(seq) > 0 {
			parts := make([]string, len(seq))
			for i, item := range seq {
				parts[i] = text(item)
			}
			if joined := strings.Join(parts, ", "); joined != "" {
				return joined, true
			}
		}
	}
	return fieldMessage(m)
}

func tokenMessage(m *Mapping) string {
	if v, ok := m.Get("messages"); ok {
		if seq, ok := v.(Sequence); ok && len(seq) > 0 {
			if first, ok := seq[0].(*Mapping); ok {
				if msg, ok := first.Get("message"); ok && truthy(msg) {
					return text(msg)
				}
			}
		}
	}
	if v, ok := m.Get("detail"); ok && truthy(v) {
		return text(v)
	}
	return authErrorMessage
}

func fieldMessage(m *Mapping) (string, bool) {
	for _, e := range m.Entries() {
		switch v := e.Value.(type) {
		case Sequence:
			if len(v) > 0 {
				return e.Key + ": " + text(v[0]), true
			}
		case Scalar:
			if v.kind == KindString {
				return e.Key + ": " + v.text, true
			}
		case *Mapping:
			for _, nested := range v.Entries() {
				if seq, ok := nested.Value.(Sequence); ok && len(seq) > 0 {
					return e.Key + "." + nested.Key + ": " + text(seq[0]), true
				}
			}
		}
	}
	return "", false
}

func fromSequence(seq Sequence) (string, bool) {
	if len(seq) == 0 {
		return "", false
	}
	switch first := seq[0].(type) {
	case Scalar:
		if first.kind == KindString && first.text != "" {
			return first.text, true
		}
	case *Mapping:
		if v, ok := first.Get("message"); ok && truthy(v) {
			return text(v), true
		}
		if v, ok := first.Get("detail"); ok && truthy(v) {
			return text(v), true
		}
	}
	return "", false
}

func fallback(p Payload) string {
	switch v := p.(type) {
	case *Mapping:
		if v == nil {
			return unknownMessage
		}
	case Sequence:
	default:
		return unknownMessage
	}
	data, err := Marshal(p)
	if err != nil {
		return unserializableMessage
	}
	return string(data)
}

// text renders a field value for display. Nested structures are shown as
// JSON rather than dropped.
func text(p Payload) string {
	switch v := p.(type) {
	case nil:
		return "null"
	case Scalar:
		return v.text
	}
	data, err := Marshal(p)
	if err != nil {
		return unserializableMessage
	}
	return string(data)
}
