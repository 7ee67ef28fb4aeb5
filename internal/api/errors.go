package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/dharsanguruparan/VaultForm/internal/apierror"
)

// NonFieldErrors is the key used for errors that span several fields.
const NonFieldErrors = "non_field_errors"

// FieldError collects validation messages per field, keeping the order in
// which fields were first reported. It renders as {"field": ["msg", ...]}.
type FieldError struct {
	fields []string
	msgs   map[string][]string
}

// Add records msg against field.
func (e *FieldError) Add(field, msg string) {
	if e.msgs == nil {
		e.msgs = make(map[string][]string)
	}
	if _, ok := e.msgs[field]; !ok {
		e.fields = append(e.fields, field)
	}
	e.msgs[field] = append(e.msgs[field], msg)
}

// Empty reports whether no field failed.
func (e *FieldError) Empty() bool { return e == nil || len(e.fields) == 0 }

// Messages returns the messages recorded for field.
func (e *FieldError) Messages(field string) []string { return e.msgs[field] }

func (e *FieldError) Error() string {
	if e.Empty() {
		return "validation failed"
	}
	first := e.fields[0]
	return "validation failed: " + first + ": " + e.msgs[first][0]
}

// Payload converts the error into an ordered payload.
func (e *FieldError) Payload() *apierror.Mapping {
	m := apierror.Map()
	for _, field := range e.fields {
		items := make(apierror.Sequence, 0, len(e.msgs[field]))
		for _, msg := range e.msgs[field] {
			items = append(items, apierror.String(msg))
		}
		m.Set(field, items)
	}
	return m
}

// MarshalJSON keeps fields in report order.
func (e *FieldError) MarshalJSON() ([]byte, error) {
	return apierror.Marshal(e.Payload())
}

type detail struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

type tokenMessage struct {
	TokenClass string `json:"token_class"`
	TokenType  string `json:"token_type"`
	Message    string `json:"message"`
}

type tokenError struct {
	Detail   string         `json:"detail"`
	Code     string         `json:"code"`
	Messages []tokenMessage `json:"messages"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func respondDetail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondJSON(w, r, status, detail{Detail: msg})
}
