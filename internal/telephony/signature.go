package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader carries the provider's request signature.
const SignatureHeader = "X-Twilio-Signature"

// ComputeSignature signs a callback the way the provider does: the full
// request URL followed by every POST parameter name and value, sorted by
// name, HMAC-SHA1 with the auth token and base64 encoded.
func ComputeSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Validator checks callback signatures. A Validator without a token accepts
// everything.
type Validator struct {
	authToken string
}

// NewValidator creates a Validator for the given auth token.
func NewValidator(authToken string) *Validator {
	return &Validator{authToken: strings.TrimSpace(authToken)}
}

// Enabled reports whether signatures are checked.
func (v *Validator) Enabled() bool {
	return v != nil && v.authToken != ""
}

// Valid reports whether signature matches the callback.
func (v *Validator) Valid(signature, fullURL string, params url.Values) bool {
	if !v.Enabled() {
		return true
	}
	if signature == "" {
		return false
	}
	expected := ComputeSignature(v.authToken, fullURL, params)
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}
