package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// Signer handles OKX V5 API authentication.
// It stores keys as []byte to allow memory wiping.
type Signer struct {
	apiKey     []byte
	secretKey  []byte
	passphrase []byte
}

// NewSigner creates a new signer.
// It converts string inputs to []byte for internal safety.
func NewSigner(apiKey, secretKey, passphrase string) *Signer {
	return &Signer{
		apiKey:     []byte(apiKey),
		secretKey:  []byte(secretKey),
		passphrase: []byte(passphrase),
	}
}

// Wipe clears the keys from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	s.wipeSlice(s.apiKey)
	s.wipeSlice(s.secretKey)
	s.wipeSlice(s.passphrase)
}

func (s *Signer) wipeSlice(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateHeaders creates the required headers for OKX V5 API.
// The pre-signature string is timestamp + method + requestPath + body,
// where requestPath includes the query string and the timestamp is
// ISO8601 with millisecond precision (e.g. 2020-12-08T09:08:57.715Z).
func (s *Signer) GenerateHeaders(method, requestPath, body string) map[string]string {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	return s.headersAt(timestamp, method, requestPath, body)
}

func (s *Signer) headersAt(timestamp, method, requestPath, body string) map[string]string {
	payload := timestamp + method + requestPath + body
	signature := s.computeHmacSha256(payload)

	return map[string]string{
		"OK-ACCESS-KEY":        string(s.apiKey),
		"OK-ACCESS-SIGN":       signature,
		"OK-ACCESS-TIMESTAMP":  timestamp,
		"OK-ACCESS-PASSPHRASE": string(s.passphrase),
		"Content-Type":         "application/json",
	}
}

func (s *Signer) computeHmacSha256(payload string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
