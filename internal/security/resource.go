package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

func SignResource(secret string, parts ...string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	payload := strings.Join(parts, ":")
	mac.Write([]byte(payload))
	sum := mac.Sum(nil)
	return []byte(base64.RawURLEncoding.EncodeToString(sum))
}

// SignSessionID returns the cookie value for a browser-session id.
func SignSessionID(secret string, sid string) string {
	return sid + "." + string(SignResource(secret, "sid", sid))
}

// VerifySessionID returns the session id carried by a cookie value produced
// by SignSessionID, or false if the signature does not match.
func VerifySessionID(secret string, value string) (string, bool) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 || idx == len(value)-1 {
		return "", false
	}
	sid, sig := value[:idx], value[idx+1:]
	expected := SignResource(secret, "sid", sid)
	if !hmac.Equal([]byte(sig), expected) {
		return "", false
	}
	return sid, true
}
