package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

// compile-time check that *DB implements repository.ProfileRepository
var _ repository.ProfileRepository = (*DB)(nil)

// UpsertByGitHubID inserts or updates a profile based on its GitHub ID.
//
// We look the row up first instead of using INSERT OR REPLACE: REPLACE
// deletes and re-inserts, which would violate the foreign keys that trips,
// memberships and memories hold on profiles(id).
//
// After the call, profile.ID, CreatedAt and UpdatedAt are the canonical values.
func (db *DB) UpsertByGitHubID(ctx context.Context, profile *model.Profile) error {
	var existingID string
	var createdAt time.Time
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, created_at FROM profiles WHERE github_id = ?`, profile.GitHubID,
	).Scan(&existingID, &createdAt)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up profile by github_id %d: %w", profile.GitHubID, err)
	}

	now := time.Now()
	if existingID != "" {
		// Existing profile: refresh the OAuth-provided fields
		profile.ID = existingID
		profile.CreatedAt = createdAt
		profile.UpdatedAt = now
		_, err = db.conn.ExecContext(ctx,
			`UPDATE profiles SET name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
			profile.Name, profile.AvatarURL, profile.UpdatedAt, profile.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating profile %s: %w", profile.ID, err)
		}
		return nil
	}

	// First sign-in: generate an ID and INSERT
	profile.ID = xid.New().String()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO profiles (id, github_id, name, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		profile.ID, profile.GitHubID, profile.Name, profile.AvatarURL,
		profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting profile (githubID=%d): %w", profile.GitHubID, err)
	}
	return nil
}

// GetProfile retrieves a profile by its internal ID.
// Returns apperror.ErrNotFound if no profile exists with that ID.
func (db *DB) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, github_id, name, avatar_url, created_at, updated_at
		 FROM profiles WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.GitHubID, &p.Name, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("profile", id)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", id, err)
	}
	return &p, nil
}

// UpdateProfile saves the editable profile fields (name and avatar).
func (db *DB) UpdateProfile(ctx context.Context, profile *model.Profile) error {
	profile.UpdatedAt = time.Now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		profile.Name, profile.AvatarURL, profile.UpdatedAt, profile.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", profile.ID, err)
	}
	return expectOneRow(result, "profile", profile.ID)
}

// expectOneRow turns "0 rows affected" into a NotFound error.
// Same pattern for every UPDATE/DELETE by primary key.
func expectOneRow(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
