// internal/common/auth/passcode.go
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	saltLength   = 32
	saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrMalformedBasicAuth = errors.New("MALFORMED_BASIC_AUTH")

// GenerateSalt returns a random 32-character alphanumeric salt.
func GenerateSalt() (string, error) {
	max := big.NewInt(int64(len(saltAlphabet)))
	var b strings.Builder
	b.Grow(saltLength)
	for i := 0; i < saltLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate salt: %w", err)
		}
		b.WriteByte(saltAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// HashPasscode is base64(HMAC-SHA256(key=salt, message=passcode)).
func HashPasscode(passcode, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(passcode))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyPasscode compares in constant time. An empty hash or salt never matches.
func VerifyPasscode(passcode, salt, storedHash string) bool {
	if salt == "" || storedHash == "" {
		return false
	}
	return hmac.Equal([]byte(HashPasscode(passcode, salt)), []byte(storedHash))
}

// ParseBasicAuth splits "Basic base64(user:pass)". The password may contain colons.
func ParseBasicAuth(header string) (user, pass string, err error) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", ErrMalformedBasicAuth
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedBasicAuth, err)
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", ErrMalformedBasicAuth
	}
	return user, pass, nil
}

// BearerToken extracts the token of an "Authorization: Bearer x" header.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
