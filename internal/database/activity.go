package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cinerank/models"
)

// Favorite item types accepted by the favorites table.
const (
	FavoriteTypeMedia  = "media"
	FavoriteTypePerson = "person"
	FavoriteTypeGenre  = "genre"
)

// ActivityRepository stores watch history and favorites.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates an activity repository backed by the given connection.
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// WatchHistory returns one row per distinct watched title, newest first,
// with each title's genre set attached.
func (r *ActivityRepository) WatchHistory(ctx context.Context, userID int64) ([]models.WatchedItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT wh.media_id, wh.rating, m.year, mg.genre_id
		FROM watch_history wh
		JOIN media m ON m.id = wh.media_id
		LEFT JOIN media_genres mg ON mg.media_id = wh.media_id
		WHERE wh.user_id = ?
		ORDER BY wh.watch_date DESC, wh.media_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("watch history for user %d: %w", userID, err)
	}
	defer rows.Close()

	var (
		items []models.WatchedItem
		index = make(map[int64]int)
	)
	for rows.Next() {
		var (
			mediaID int64
			rating  sql.NullInt64
			year    sql.NullInt64
			genreID sql.NullInt64
		)
		if err := rows.Scan(&mediaID, &rating, &year, &genreID); err != nil {
			return nil, fmt.Errorf("watch history for user %d: %w", userID, err)
		}

		i, ok := index[mediaID]
		if !ok {
			item := models.WatchedItem{
				MediaID: mediaID,
				Year:    int(year.Int64),
			}
			if rating.Valid {
				v := int(rating.Int64)
				item.Rating = &v
			}
			items = append(items, item)
			i = len(items) - 1
			index[mediaID] = i
		}
		if genreID.Valid {
			items[i].GenreIDs = append(items[i].GenreIDs, genreID.Int64)
		}
	}
	return items, rows.Err()
}

// RecordWatch upserts a watch-history row. A rewatch refreshes the date and
// rating instead of duplicating the row.
func (r *ActivityRepository) RecordWatch(ctx context.Context, userID, mediaID int64, rating *int) error {
	var ratingVal any
	if rating != nil {
		ratingVal = *rating
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watch_history (user_id, media_id, watch_date, rating) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, media_id) DO UPDATE SET
		     watch_date = excluded.watch_date,
		     rating = COALESCE(excluded.rating, watch_history.rating)`,
		userID, mediaID, time.Now().UTC(), ratingVal)
	if err != nil {
		return fmt.Errorf("record watch user=%d media=%d: %w", userID, mediaID, err)
	}
	return nil
}

// RemoveWatch deletes a watch-history row.
func (r *ActivityRepository) RemoveWatch(ctx context.Context, userID, mediaID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM watch_history WHERE user_id = ? AND media_id = ?`, userID, mediaID)
	if err != nil {
		return fmt.Errorf("remove watch user=%d media=%d: %w", userID, mediaID, err)
	}
	return nil
}

// Favorites returns the user's favorites split by item type. Favorited
// people carry the roles they are credited under in the catalog.
func (r *ActivityRepository) Favorites(ctx context.Context, userID int64) (models.FavoriteSet, error) {
	var set models.FavoriteSet

	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, item_type FROM favorites WHERE user_id = ? AND item_type IN ('media', 'genre')`,
		userID)
	if err != nil {
		return set, fmt.Errorf("favorites for user %d: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID   int64
			itemType string
		)
		if err := rows.Scan(&itemID, &itemType); err != nil {
			return set, fmt.Errorf("favorites for user %d: %w", userID, err)
		}
		switch itemType {
		case FavoriteTypeMedia:
			set.MediaIDs = append(set.MediaIDs, itemID)
		case FavoriteTypeGenre:
			set.GenreIDs = append(set.GenreIDs, itemID)
		}
	}
	if err := rows.Err(); err != nil {
		return set, fmt.Errorf("favorites for user %d: %w", userID, err)
	}

	people, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT f.item_id, COALESCE(mp.role, '')
		FROM favorites f
		LEFT JOIN media_people mp ON mp.person_id = f.item_id
		WHERE f.user_id = ? AND f.item_type = 'person'`, userID)
	if err != nil {
		return set, fmt.Errorf("favorite people for user %d: %w", userID, err)
	}
	defer people.Close()

	for people.Next() {
		var fp models.FavoritePerson
		if err := people.Scan(&fp.PersonID, &fp.Role); err != nil {
			return set, fmt.Errorf("favorite people for user %d: %w", userID, err)
		}
		set.People = append(set.People, fp)
	}
	return set, people.Err()
}

// FavoriteGenreIDs returns the union of directly favorited genres and the
// genres of favorited media.
func (r *ActivityRepository) FavoriteGenreIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id AS genre_id FROM favorites
		WHERE user_id = ? AND item_type = 'genre'
		UNION
		SELECT mg.genre_id FROM favorites f
		JOIN media_genres mg ON mg.media_id = f.item_id
		WHERE f.user_id = ? AND f.item_type = 'media'`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("favorite genres for user %d: %w", userID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("favorite genres for user %d: %w", userID, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddFavorite records an item as favorited. Re-adding is a no-op.
func (r *ActivityRepository) AddFavorite(ctx context.Context, userID, itemID int64, itemType string) error {
	switch itemType {
	case FavoriteTypeMedia, FavoriteTypePerson, FavoriteTypeGenre:
	default:
		return fmt.Errorf("add favorite: unknown item type %q", itemType)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites (user_id, item_id, item_type) VALUES (?, ?, ?)`,
		userID, itemID, itemType)
	if err != nil {
		return fmt.Errorf("add favorite user=%d item=%d: %w", userID, itemID, err)
	}
	return nil
}

// RemoveFavorite deletes a favorite row.
func (r *ActivityRepository) RemoveFavorite(ctx context.Context, userID, itemID int64, itemType string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND item_id = ? AND item_type = ?`,
		userID, itemID, itemType)
	if err != nil {
		return fmt.Errorf("remove favorite user=%d item=%d: %w", userID, itemID, err)
	}
	return nil
}
