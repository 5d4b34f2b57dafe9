// Package security holds the HMAC primitives used to sign payment intents and
// verify inbound webhook deliveries.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrEmptySecret is returned when signing is attempted without a key.
var ErrEmptySecret = errors.New("signing secret is required")

const fieldSeparator = "|"

// SignFields returns hex(hmac_sha256(secret, fields joined by "|")).
func SignFields(secret string, fields ...string) (string, error) {
	return SignBody(secret, []byte(strings.Join(fields, fieldSeparator)))
}

// SignBody returns hex(hmac_sha256(secret, body)).
func SignBody(secret string, body []byte) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyBody reports whether signature is the hex HMAC of body. The
// comparison is constant time; malformed hex never matches.
func VerifyBody(secret string, body []byte, signature string) bool {
	if secret == "" {
		return false
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(given) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(given, mac.Sum(nil))
}

// VerifyFields is VerifyBody over fields joined by "|".
func VerifyFields(secret, signature string, fields ...string) bool {
	return VerifyBody(secret, []byte(strings.Join(fields, fieldSeparator)), signature)
}
