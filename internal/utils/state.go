package utils

import (
	"crypto/hmac"
	"strings"
)

// SignState appends an HMAC of state so an OAuth callback can prove the
// state cookie was minted by this server.
func SignState(state string, secret string) string {
	return state + "." + HashToken(state, secret)
}

func VerifySignedState(raw string, secret string) (string, bool) {
	state, _, ok := strings.Cut(raw, ".")
	if !ok || state == "" {
		return "", false
	}
	expected := SignState(state, secret)
	if !hmac.Equal([]byte(expected), []byte(raw)) {
		return "", false
	}
	return state, true
}
