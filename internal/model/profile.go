// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Profile is the public face of a signed-in user.
//
// A profile is created automatically the first time someone signs in with
// GitHub: the OAuth provider hands us a display name and an avatar, and we
// store our own xid-based ID so foreign keys never depend on GitHub's
// numbering scheme.
//
// WHY GitHubID int64?
// GitHub user IDs are integers (e.g. 1234567). Using int64 avoids overflow
// for large account numbers. The UNIQUE constraint on github_id in the DB
// ensures one GitHub account maps to exactly one profile.
type Profile struct {
	ID        string    `json:"id"        db:"id"`
	GitHubID  int64     `json:"githubId"  db:"github_id"`
	Name      string    `json:"name"      db:"name"`
	AvatarURL string    `json:"avatarUrl" db:"avatar_url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
