package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

var _ repository.MemoryRepository = (*DB)(nil)

const memoryColumns = `id, trip_id, created_by, date, content, media_urls, created_at, updated_at`

func (db *DB) CreateMemory(ctx context.Context, memory *model.Memory) error {
	now := time.Now()
	memory.ID = xid.New().String()
	memory.CreatedAt = now
	memory.UpdatedAt = now

	media, err := encodeMedia(memory.MediaURLs)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		memory.ID, memory.TripID, memory.CreatedBy, memory.Date, memory.Content, media,
		memory.CreatedAt, memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating memory: %w", err)
	}
	return nil
}

func (db *DB) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	memory, err := scanMemory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("memory", id)
		}
		return nil, fmt.Errorf("sqlite: getting memory %s: %w", id, err)
	}
	return memory, nil
}

// ListMemories returns a trip's memories in chronological order.
// An empty date returns the whole journal.
func (db *DB) ListMemories(ctx context.Context, tripID, date string) ([]model.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE trip_id = ?`
	args := []any{tripID}
	if date != "" {
		query += ` AND date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY date, created_at, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing memories of trip %s: %w", tripID, err)
	}
	defer rows.Close()

	memories := []model.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning memory row: %w", err)
		}
		memories = append(memories, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating memories: %w", err)
	}
	return memories, nil
}

func (db *DB) UpdateMemory(ctx context.Context, memory *model.Memory) error {
	memory.UpdatedAt = time.Now()
	media, err := encodeMedia(memory.MediaURLs)
	if err != nil {
		return err
	}
	result, err := db.conn.ExecContext(ctx,
		`UPDATE memories SET date = ?, content = ?, media_urls = ?, updated_at = ? WHERE id = ?`,
		memory.Date, memory.Content, media, memory.UpdatedAt, memory.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating memory %s: %w", memory.ID, err)
	}
	return expectOneRow(result, "memory", memory.ID)
}

func (db *DB) DeleteMemory(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting memory %s: %w", id, err)
	}
	return expectOneRow(result, "memory", id)
}

func scanMemory(row rowScanner) (*model.Memory, error) {
	var m model.Memory
	var media string
	err := row.Scan(&m.ID, &m.TripID, &m.CreatedBy, &m.Date, &m.Content, &media, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(media), &m.MediaURLs); err != nil {
		return nil, fmt.Errorf("decoding media urls of memory %s: %w", m.ID, err)
	}
	if m.MediaURLs == nil {
		m.MediaURLs = []string{}
	}
	return &m, nil
}

func encodeMedia(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding media urls: %w", err)
	}
	return string(b), nil
}
