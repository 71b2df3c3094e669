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

var _ repository.ExploreRepository = (*DB)(nil)

const exploreColumns = `id, trip_id, created_by, title, description, category, date, url, image_url,
	created_at, updated_at`

func (db *DB) CreateExploreItem(ctx context.Context, item *model.ExploreItem) error {
	now := time.Now()
	item.ID = xid.New().String()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO explore_items (`+exploreColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.TripID, item.CreatedBy, item.Title, item.Description, item.Category,
		item.Date, item.URL, item.ImageURL, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating explore item: %w", err)
	}
	return nil
}

func (db *DB) GetExploreItem(ctx context.Context, id string) (*model.ExploreItem, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+exploreColumns+` FROM explore_items WHERE id = ?`, id)
	item, err := scanExploreItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("explore item", id)
		}
		return nil, fmt.Errorf("sqlite: getting explore item %s: %w", id, err)
	}
	return item, nil
}

// ListExploreItems returns a trip's suggestions; dated items first, by date.
func (db *DB) ListExploreItems(ctx context.Context, tripID string) ([]model.ExploreItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+exploreColumns+` FROM explore_items
		 WHERE trip_id = ?
		 ORDER BY date = '', date, created_at, id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing explore items of trip %s: %w", tripID, err)
	}
	defer rows.Close()

	items := []model.ExploreItem{}
	for rows.Next() {
		item, err := scanExploreItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning explore row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating explore items: %w", err)
	}
	return items, nil
}

func (db *DB) DeleteExploreItem(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM explore_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting explore item %s: %w", id, err)
	}
	return expectOneRow(result, "explore item", id)
}

func scanExploreItem(row rowScanner) (*model.ExploreItem, error) {
	var item model.ExploreItem
	err := row.Scan(
		&item.ID, &item.TripID, &item.CreatedBy, &item.Title, &item.Description, &item.Category,
		&item.Date, &item.URL, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
