package apierror

import (
	"bytes"
	"encoding/json"
	"errors"
)

// maxDepth bounds Marshal so a payload that contains itself fails instead of
// recursing forever.
const maxDepth = 256

// ErrTooDeep is returned by Marshal when nesting exceeds maxDepth.
var ErrTooDeep = errors.New("apierror: payload nested too deeply")

// Marshal renders p as compact JSON with mapping keys in their stored order.
func Marshal(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, p, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, p Payload, depth int) error {
	if depth > maxDepth {
		return ErrTooDeep
	}
	switch v := p.(type) {
	case nil:
		buf.WriteString("null")
	case Scalar:
		if v.kind == KindString {
			return encodeString(buf, v.text)
		}
		buf.WriteString(v.text)
	case *Mapping:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, e.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, e.Value, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case Sequence:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return errors.New("apierror: unsupported payload type")
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
