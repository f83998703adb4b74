package middleware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignRequestIsDeterministicAndKeyOrdered(t *testing.T) {
	url := "https://example.com/webhook/whatsapp"
	params := map[string]string{
		"From":       "whatsapp:+15551234567",
		"Body":       "spent $45 on screws",
		"MessageSid": "SM123",
	}

	a := signRequest("token", url, params)
	b := signRequest("token", url, params)
	require.Equal(t, a, b)
	require.NotEmpty(t, a)

	// Any change to token, URL, or params changes the signature.
	require.NotEqual(t, a, signRequest("other-token", url, params))
	require.NotEqual(t, a, signRequest("token", url+"?x=1", params))

	params["Body"] = "spent $46 on screws"
	require.NotEqual(t, a, signRequest("token", url, params))
}
