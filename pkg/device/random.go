package device

import (
	"math/rand/v2"
	"strings"
)

// FakeFingerprintData is the placeholder template stored when a test user has
// no real scan.
var FakeFingerprintData = []byte("fake_fingerprint_data")

const (
	userIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	userIDLength   = 8
	pinLength      = 6
)

// RandomUserID returns a random alphanumeric user ID.
func RandomUserID() string {
	var b strings.Builder
	b.Grow(userIDLength)
	for range userIDLength {
		b.WriteByte(userIDAlphabet[rand.IntN(len(userIDAlphabet))])
	}
	return b.String()
}

// RandomPIN returns a random numeric PIN in plain text.
func RandomPIN() string {
	var b strings.Builder
	b.Grow(pinLength)
	for range pinLength {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// PlaceholderTemplate returns a finger slot carrying the fake template.
func PlaceholderTemplate(index int) FingerprintTemplate {
	return FingerprintTemplate{
		Index:     index,
		Templates: [][]byte{append([]byte(nil), FakeFingerprintData...)},
	}
}

// NewRandomUser builds a user with a random ID, a plain random PIN and one
// placeholder fingerprint template.
func NewRandomUser() *User {
	return &User{
		ID:      RandomUserID(),
		PIN:     []byte(RandomPIN()),
		Fingers: []FingerprintTemplate{PlaceholderTemplate(0)},
	}
}

// EnsureFingerprint makes sure the user carries a non-empty template,
// putting the placeholder into the first finger slot where needed.
func EnsureFingerprint(u *User) {
	if u.HasFingerprint() {
		return
	}
	if len(u.Fingers) == 0 {
		u.Fingers = append(u.Fingers, PlaceholderTemplate(0))
		return
	}
	u.Fingers[0].Templates = [][]byte{append([]byte(nil), FakeFingerprintData...)}
}
