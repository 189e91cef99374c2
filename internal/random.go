package internal

import (
	"crypto/rand"
	"errors"
	"io"

	"github.com/google/uuid"
)

// NewCorrelationID returns an unguessable 128-bit correlation token. The id
// is the only secret binding an inbound callback to a conversation, so it
// must never be sequential or derived from conversation identifiers.
func NewCorrelationID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Digits draws n decimal digits from source, one byte per digit reduced
// mod 10. The reduction is not rejection-sampled; the residual bias is
// tolerated because the code is paired with an unguessable correlation id.
// A nil source falls back to crypto/rand.
func Digits(source io.Reader, n int) (string, error) {
	if n <= 0 {
		return "", errors.New("digit count must be positive")
	}
	if source == nil {
		source = rand.Reader
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(source, buf); err != nil {
		return "", err
	}

	out := make([]byte, n)
	for i, b := range buf {
		out[i] = '0' + b%10
	}
	return string(out), nil
}
