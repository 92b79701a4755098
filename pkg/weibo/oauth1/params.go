package oauth1

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// Clock supplies the oauth_timestamp.
type Clock interface {
	Now() time.Time
}

// Noncer supplies the oauth_nonce.
type Noncer interface {
	Nonce() string
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Useful for testing.
type FixedClock struct {
	Time time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.Time }

// RandomNoncer returns 16 random bytes, hex encoded.
type RandomNoncer struct{}

// Nonce returns a fresh random nonce.
func (RandomNoncer) Nonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// FixedNoncer always returns the same nonce. Useful for testing.
type FixedNoncer string

// Nonce returns the fixed nonce.
func (n FixedNoncer) Nonce() string { return string(n) }

// CommonParams returns the oauth_* parameters every signed request carries,
// minus oauth_token and oauth_signature.
func CommonParams(consumerKey string, clock Clock, noncer Noncer) map[string]string {
	if clock == nil {
		clock = SystemClock{}
	}
	if noncer == nil {
		noncer = RandomNoncer{}
	}
	return map[string]string{
		ParamConsumerKey:     consumerKey,
		ParamNonce:           noncer.Nonce(),
		ParamSignatureMethod: SignatureMethod,
		ParamTimestamp:       strconv.FormatInt(clock.Now().Unix(), 10),
		ParamVersion:         Version,
	}
}
