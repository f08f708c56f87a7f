package telephony

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSignature_ProviderExample(t *testing.T) {
	params := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+12349013030"},
		"Digits":  {"1234"},
		"From":    {"+12349013030"},
		"To":      {"+18005551212"},
	}

	sig := ComputeSignature("12345", "https://mycompany.com/myapp.php?foo=1&bar=2", params)

	assert.Equal(t, "0/KCTR6DLpKmkAf8muzZqo1nDgQ=", sig)
}

func TestValidator(t *testing.T) {
	params := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}}
	u := "https://leads.example.com/telephony/status"
	v := NewValidator("secret")

	good := ComputeSignature("secret", u, params)
	assert.True(t, v.Valid(good, u, params))
	assert.False(t, v.Valid("", u, params))
	assert.False(t, v.Valid(good, u+"?x=1", params))
	assert.False(t, v.Valid(ComputeSignature("other", u, params), u, params))

	disabled := NewValidator("  ")
	assert.False(t, disabled.Enabled())
	assert.True(t, disabled.Valid("", u, params))
}
