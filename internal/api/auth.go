package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/dharsanguruparan/VaultForm/internal/apierror"
	"github.com/dharsanguruparan/VaultForm/internal/signing"
)

const (
	msgNoCredentials = "Authentication credentials were not provided."
	msgTokenNotValid = "Given token not valid for any token type"
	msgTokenExpired  = "Token is invalid or expired"
)

type subjectKey struct{}

// Subject returns the authenticated subject stored on ctx.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// requireToken rejects requests without a valid bearer token.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if header == "" || !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			respondDetail(w, r, http.StatusUnauthorized, msgNoCredentials)
			return
		}
		subject, err := s.signer.Verify(strings.TrimSpace(token))
		if err != nil {
			hlog.FromRequest(r).Info().
				Bool("expired", errors.Is(err, signing.ErrTokenExpired)).
				Msg("rejected bearer token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			respondJSON(w, r, http.StatusUnauthorized, tokenError{
				Detail: msgTokenNotValid,
				Code:   apierror.TokenNotValid,
				Messages: []tokenMessage{{
					TokenClass: "AccessToken",
					TokenType:  "access",
					Message:    msgTokenExpired,
				}},
			})
			return
		}
		ctx := context.WithValue(r.Context(), subjectKey{}, subject)
		next(w, r.WithContext(ctx))
	}
}
