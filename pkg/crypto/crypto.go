package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
)

// referralAlphabet excludes ambiguous glyphs (0/O, 1/I/L) so codes survive
// being read aloud or retyped from a chat message.
const referralAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// GenerateReferralCode returns a random human-friendly code of the given length.
func GenerateReferralCode(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("crypto: referral code length must be positive")
	}

	max := big.NewInt(int64(len(referralAlphabet)))
	out := make([]byte, length)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = referralAlphabet[idx.Int64()]
	}
	return string(out), nil
}
