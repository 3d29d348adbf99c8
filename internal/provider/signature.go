package provider

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Sign computes the provider request signature: HMAC-SHA-256 over
// lower(method) + path + salt + timestamp + access key + secret + body,
// hex-encoded then base64-encoded. The same scheme covers outbound requests
// and inbound webhook envelopes.
func Sign(method, path, salt, timestamp string, creds Credentials, body []byte) string {
	toSign := method + path + salt + timestamp + creds.AccessKey + creds.SecretKey + string(body)
	mac := hmac.New(sha256.New, []byte(creds.SecretKey))
	mac.Write([]byte(toSign))
	digest := hex.EncodeToString(mac.Sum(nil))
	return base64.StdEncoding.EncodeToString([]byte(digest))
}

// VerifySignature checks an inbound signature in constant time against the
// raw received bytes. It must run before the body is parsed.
func VerifySignature(signature, method, path, salt, timestamp string, creds Credentials, body []byte) bool {
	expected := Sign(method, path, salt, timestamp, creds, body)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// newSalt returns a 16-character hex nonce.
func newSalt() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
