package auth

// REFRESH TOKEN SECRETS:
// A refresh token is "<sessionID>.<secret>". The session ID is the lookup key
// in the sessions table; the secret is 32 random bytes, hex-encoded, that only
// the client ever sees in plain text. We store a bcrypt hash of it, exactly
// like a password, so a copy of the database cannot be replayed.
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$10$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost
//	 version

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for refresh secrets.
const defaultCost = bcrypt.DefaultCost

// secretBytes is the amount of randomness in each refresh secret.
const secretBytes = 32

// ErrInvalidRefreshToken covers every way a presented refresh token can fail:
// malformed, unknown session, wrong secret or expired.
var ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")

// SecretService generates, hashes and verifies refresh-token secrets.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests. Cost 4 makes tests run in milliseconds.
type SecretService struct {
	cost int
}

// NewSecretService creates a SecretService with the default bcrypt cost.
func NewSecretService() *SecretService {
	return &SecretService{cost: defaultCost}
}

// NewSecretServiceWithCost creates a SecretService with a custom cost.
// Use bcrypt.MinCost in tests in other packages; never in production.
func NewSecretServiceWithCost(cost int) *SecretService {
	return &SecretService{cost: cost}
}

// Generate returns a new random secret.
func (s *SecretService) Generate() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash hashes a secret with bcrypt.
func (s *SecretService) Hash(secret string) (string, error) {
	if len(secret) > 72 {
		// bcrypt silently truncates input longer than 72 bytes.
		return "", fmt.Errorf("auth: secret must be 72 bytes or fewer")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a plain secret against its stored hash.
// bcrypt.CompareHashAndPassword compares in constant time.
func (s *SecretService) Verify(hash, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidRefreshToken
		}
		return fmt.Errorf("auth: comparing secret hash: %w", err)
	}
	return nil
}

// JoinRefreshToken builds the client-facing refresh token.
func JoinRefreshToken(sessionID, secret string) string {
	return sessionID + "." + secret
}

// SplitRefreshToken parses "<sessionID>.<secret>".
func SplitRefreshToken(token string) (sessionID, secret string, err error) {
	sessionID, secret, ok := strings.Cut(token, ".")
	if !ok || sessionID == "" || secret == "" {
		return "", "", ErrInvalidRefreshToken
	}
	return sessionID, secret, nil
}
