// Package signing issues and verifies the bearer tokens accepted by the
// storage API. A token is "subject.expiry.signature": the subject is
// base64url encoded, expiry is a unix timestamp and the signature is the hex
// HMAC-SHA256 of the first two parts.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenInvalid covers malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token is expired")
)

// Signer generates and validates HMAC based tokens.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Sign returns the hex signature for subject and expiry.
func (s *Signer) Sign(subject string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", subject, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue mints a token for subject valid for ttl.
func (s *Signer) Issue(subject string, ttl time.Duration) string {
	exp := s.now().Add(ttl).Unix()
	enc := base64.RawURLEncoding.EncodeToString([]byte(subject))
	return enc + "." + strconv.FormatInt(exp, 10) + "." + s.Sign(subject, exp)
}

// Verify checks token and returns its subject.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrTokenInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrTokenInvalid
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", ErrTokenInvalid
	}
	subject := string(raw)
	if !hmac.Equal([]byte(s.Sign(subject, exp)), []byte(parts[2])) {
		return "", ErrTokenInvalid
	}
	if s.now().Unix() >= exp {
		return "", ErrTokenExpired
	}
	return subject, nil
}
