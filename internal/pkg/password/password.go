package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 10
	MaxCost     = 14
)

// Hasher hashes and verifies user passwords with bcrypt at a fixed cost.
type Hasher struct {
	cost int
	// dummy is compared against when the account does not exist. It is hashed at cost so a
	// miss costs the same bcrypt work as a wrong password.
	dummy []byte
}

func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > MaxCost {
		return nil, fmt.Errorf("password hash cost must be in [%d, %d], got %d", bcrypt.MinCost, MaxCost, cost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-never-matches"), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy digest: %w", err)
	}
	return &Hasher{cost: cost, dummy: dummy}, nil
}

// Hash returns a salted bcrypt digest of secret.
func (h *Hasher) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrTooLong
		}
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether secret matches digest. A malformed digest is a mismatch.
func (h *Hasher) Verify(secret, digest string) bool {
	if digest == "" {
		h.VerifyDummy(secret)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// VerifyDummy burns one comparison for callers that have no digest to check.
func (h *Hasher) VerifyDummy(secret string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(secret))
}

var ErrTooLong = errors.New("password exceeds 72 bytes")
