package clob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// normalizeSecret maps base64url to standard base64, drops anything outside
// the alphabet and restores padding, the way the official clients do.
func normalizeSecret(secret string) string {
	secret = strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimSpace(secret))
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '+' || r == '/' || r == '=':
			return r
		}
		return -1
	}, secret)
	if rem := len(out) % 4; rem != 0 {
		out += strings.Repeat("=", 4-rem)
	}
	return out
}

// DecodeSecret returns the raw HMAC key behind an API secret.
func DecodeSecret(secret string) ([]byte, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("api secret empty")
	}
	key, err := base64.StdEncoding.DecodeString(normalizeSecret(secret))
	if err != nil {
		return nil, fmt.Errorf("decode base64 secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("api secret decodes to zero bytes")
	}
	return key, nil
}

// signL2 signs timestamp+method+path+body and returns url-safe base64 with
// padding kept.
func signL2(secret string, timestamp int64, method, requestPath string, body []byte) (string, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte(method))
	mac.Write([]byte(requestPath))
	if body != nil {
		mac.Write(body)
	}
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
