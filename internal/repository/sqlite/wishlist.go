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

var _ repository.WishlistRepository = (*DB)(nil)

const wishlistColumns = `id, trip_id, created_by, title, description, category, completed,
	explore_item_id, created_at, updated_at`

func (db *DB) CreateWishlistItem(ctx context.Context, item *model.WishlistItem) error {
	now := time.Now()
	item.ID = xid.New().String()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO wishlist_items (`+wishlistColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.TripID, item.CreatedBy, item.Title, item.Description, item.Category,
		item.Completed, item.ExploreItemID, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating wishlist item: %w", err)
	}
	return nil
}

func (db *DB) GetWishlistItem(ctx context.Context, id string) (*model.WishlistItem, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+wishlistColumns+` FROM wishlist_items WHERE id = ?`, id)
	item, err := scanWishlistItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("wishlist item", id)
		}
		return nil, fmt.Errorf("sqlite: getting wishlist item %s: %w", id, err)
	}
	return item, nil
}

// ListWishlistItems returns a trip's wishlist, open items first.
func (db *DB) ListWishlistItems(ctx context.Context, tripID string) ([]model.WishlistItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+wishlistColumns+` FROM wishlist_items
		 WHERE trip_id = ?
		 ORDER BY completed, created_at, id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing wishlist of trip %s: %w", tripID, err)
	}
	defer rows.Close()

	items := []model.WishlistItem{}
	for rows.Next() {
		item, err := scanWishlistItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning wishlist row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating wishlist: %w", err)
	}
	return items, nil
}

func (db *DB) UpdateWishlistItem(ctx context.Context, item *model.WishlistItem) error {
	item.UpdatedAt = time.Now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE wishlist_items
		 SET title = ?, description = ?, category = ?, completed = ?, updated_at = ?
		 WHERE id = ?`,
		item.Title, item.Description, item.Category, item.Completed, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating wishlist item %s: %w", item.ID, err)
	}
	return expectOneRow(result, "wishlist item", item.ID)
}

func (db *DB) DeleteWishlistItem(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM wishlist_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting wishlist item %s: %w", id, err)
	}
	return expectOneRow(result, "wishlist item", id)
}

func scanWishlistItem(row rowScanner) (*model.WishlistItem, error) {
	var item model.WishlistItem
	err := row.Scan(
		&item.ID, &item.TripID, &item.CreatedBy, &item.Title, &item.Description, &item.Category,
		&item.Completed, &item.ExploreItemID, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
