// Package signature verifies the authenticity of webhook deliveries.
//
// The Messenger Platform signs every POST body with the app secret and
// announces the digest in an X-Hub-Signature header of the form
// "sha1=<hex>" (or "sha256=<hex>" for the newer header). Validation
// must run over the exact raw bytes of the request body; parsing and
// re-serialising first would change the byte layout and break the MAC.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// Validator checks webhook payload signatures against a shared app secret.
type Validator struct {
	secret []byte
}

// New returns a Validator for the given app secret.
func New(appSecret string) *Validator {
	return &Validator{secret: []byte(appSecret)}
}

// Valid reports whether header is a correct signature of body.
//
// It fails closed: a missing header, an unknown digest scheme, malformed
// hex, or a mismatch all yield false. Comparison is constant-time.
func (v *Validator) Valid(body []byte, header string) bool {
	scheme, digestHex, ok := strings.Cut(header, "=")
	if !ok {
		return false
	}

	var mac hash.Hash
	switch scheme {
	case "sha1":
		mac = hmac.New(sha1.New, v.secret)
	case "sha256":
		mac = hmac.New(sha256.New, v.secret)
	default:
		return false
	}

	claimed, err := hex.DecodeString(digestHex)
	if err != nil {
		return false
	}

	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), claimed)
}
