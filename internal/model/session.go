package model

import "time"

// Session is a server-side refresh token record.
//
// The refresh token handed to clients is "<ID>.<secret>". Only a bcrypt hash
// of the secret is stored, so a leaked database does not leak usable tokens.
type Session struct {
	ID         string
	UserID     string
	SecretHash string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the session can no longer be refreshed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
