package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const digits = "0123456789"

// ErrInvalidLength is returned when a generator is asked for a non-positive length.
var ErrInvalidLength = errors.New("crypto: length must be positive")

// GenerateNumericCode returns a code of the requested length with every digit
// drawn uniformly from crypto/rand.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	limit := big.NewInt(int64(len(digits)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}

// HashCode returns a bcrypt hash of a one-time code for storage at rest.
func HashCode(code string) (string, error) {
	return HashCodeWithCost(code, bcrypt.DefaultCost)
}

// HashCodeWithCost is HashCode with an explicit bcrypt cost. Costs below
// bcrypt.MinCost use the default.
func HashCodeWithCost(code string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyCode compares a stored hash with a submitted code. Matching is exact:
// "012345" and "12345" are different codes.
func VerifyCode(hashedCode, code string) bool {
	if hashedCode == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedCode), []byte(code)) == nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
