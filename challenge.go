package chatauth

import (
	"errors"
	"io"

	"github.com/MrEthical07/chatauth/internal"
)

// MagicNumberGenerator produces the numeric one-time code the user must echo
// back into the conversation. The randomness source is injected so tests can
// pin the output; a nil source uses crypto/rand. The generator is stateless
// and safe for concurrent use.
type MagicNumberGenerator struct {
	source io.Reader
	digits int
}

// NewMagicNumberGenerator creates a generator emitting codes of the given
// length. Lengths outside 6..10 are rejected at Generate time.
func NewMagicNumberGenerator(source io.Reader, digits int) *MagicNumberGenerator {
	return &MagicNumberGenerator{
		source: source,
		digits: digits,
	}
}

// Generate returns a decimal code with leading zeros preserved, so the full
// 10^digits space is used. The code is a security control against callback
// hijacking and must come from a cryptographically secure source.
func (g *MagicNumberGenerator) Generate() (string, error) {
	if g == nil {
		return "", errors.New("nil magic number generator")
	}
	if g.digits < 6 || g.digits > 10 {
		return "", errors.New("invalid magic number digits")
	}
	return internal.Digits(g.source, g.digits)
}

// Digits reports the configured code length.
func (g *MagicNumberGenerator) Digits() int {
	if g == nil {
		return 0
	}
	return g.digits
}
