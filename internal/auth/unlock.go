// Package auth guards edits behind a single shared unlock token. The token is
// stored only as a bcrypt hash in configuration.
package auth

import (
	"errors"
	"regexp"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEditsDisabled   = errors.New("edits are disabled: no unlock token configured")
	ErrInvalidToken    = errors.New("invalid unlock token")
	ErrTooManyAttempts = errors.New("too many failed unlock attempts, try again later")
)

const (
	MaxFailedAttempts = 10
	LockoutDuration   = 15 * time.Minute
)

type attempts struct {
	failed      int
	lockedUntil time.Time
}

// Unlocker verifies unlock tokens against a bcrypt hash and locks out a caller
// key after MaxFailedAttempts consecutive failures.
type Unlocker struct {
	hash []byte
	now  func() time.Time

	mu       sync.Mutex
	failures map[string]*attempts
}

// NewUnlocker returns an Unlocker for hash. An empty hash disables every edit.
func NewUnlocker(hash string) (*Unlocker, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, errors.New("security.unlock_hash is not a bcrypt hash")
		}
	}
	return &Unlocker{hash: []byte(hash), now: time.Now, failures: make(map[string]*attempts)}, nil
}

// Enabled reports whether an unlock token is configured.
func (u *Unlocker) Enabled() bool { return len(u.hash) > 0 }

// Verify checks token for the caller identified by key (a client address, or
// "cli").
func (u *Unlocker) Verify(key, token string) error {
	if !u.Enabled() {
		return ErrEditsDisabled
	}

	u.mu.Lock()
	a := u.failures[key]
	if a != nil && u.now().Before(a.lockedUntil) {
		u.mu.Unlock()
		return ErrTooManyAttempts
	}
	u.mu.Unlock()

	err := bcrypt.CompareHashAndPassword(u.hash, []byte(token))

	u.mu.Lock()
	defer u.mu.Unlock()
	if err == nil {
		delete(u.failures, key)
		return nil
	}
	a = u.failures[key]
	if a == nil {
		a = &attempts{}
		u.failures[key] = a
	}
	a.failed++
	if a.failed >= MaxFailedAttempts {
		a.failed = 0
		a.lockedUntil = u.now().Add(LockoutDuration)
	}
	return ErrInvalidToken
}

// HashToken validates a new unlock token and returns its bcrypt hash.
func HashToken(token string) (string, error) {
	if err := ValidateTokenStrength(token); err != nil {
		return "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

var (
	hasUpper   = regexp.MustCompile(`[A-Z]`).MatchString
	hasLower   = regexp.MustCompile(`[a-z]`).MatchString
	hasNumber  = regexp.MustCompile(`[0-9]`).MatchString
	hasSpecial = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>_\-+=]`).MatchString
)

// ValidateTokenStrength checks token complexity.
func ValidateTokenStrength(token string) error {
	if len(token) < 12 {
		return errors.New("unlock token must be at least 12 characters")
	}
	checks := 0
	for _, has := range []func(string) bool{hasUpper, hasLower, hasNumber, hasSpecial} {
		if has(token) {
			checks++
		}
	}
	if checks < 3 {
		return errors.New("unlock token must contain at least 3 of: uppercase, lowercase, numbers, special characters")
	}
	return nil
}
