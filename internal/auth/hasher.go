package auth

import (
	"errors"
	"fmt"

	"github.com/matthewhartstonge/argon2"
)

// MinPasswordLength is enforced on sign up and password reset.
const MinPasswordLength = 8

var ErrWeakPassword = errors.New("password is too short")

// Hasher hashes passwords with argon2id in the PHC string format.
type Hasher struct {
	config argon2.Config
}

func NewHasher() *Hasher {
	return &Hasher{config: argon2.DefaultConfig()}
}

// NewFastHasher uses minimal memory and time costs. Only for tests.
func NewFastHasher() *Hasher {
	cfg := argon2.DefaultConfig()
	cfg.MemoryCost = 1024
	cfg.TimeCost = 1
	cfg.Parallelism = 1
	return &Hasher{config: cfg}
}

func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	encoded, err := h.config.HashEncoded([]byte(password))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(encoded), nil
}

func (h *Hasher) Verify(password, encoded string) (bool, error) {
	if encoded == "" {
		return false, nil
	}
	ok, err := argon2.VerifyEncoded([]byte(password), []byte(encoded))
	if err != nil {
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
	return ok, nil
}
