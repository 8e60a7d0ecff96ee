package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cinerank/models"
)

// PreferencesRepository stores per-user genre weights and settings.
type PreferencesRepository struct {
	db *sql.DB
}

// NewPreferencesRepository creates a preferences repository backed by the given connection.
func NewPreferencesRepository(db *sql.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// GenreWeights returns the user's explicit genre weight rows. Genres the user
// never touched are absent; callers treat absence as the neutral weight 1.0.
func (r *PreferencesRepository) GenreWeights(ctx context.Context, userID int64) (map[int64]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT genre_id, weight FROM user_preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("genre weights for user %d: %w", userID, err)
	}
	defer rows.Close()

	weights := make(map[int64]float64)
	for rows.Next() {
		var (
			genreID int64
			weight  float64
		)
		if err := rows.Scan(&genreID, &weight); err != nil {
			return nil, fmt.Errorf("genre weights for user %d: %w", userID, err)
		}
		weights[genreID] = weight
	}
	return weights, rows.Err()
}

// SetGenreWeight creates or updates one explicit weight row.
func (r *PreferencesRepository) SetGenreWeight(ctx context.Context, userID, genreID int64, weight float64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, genre_id, weight) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, genre_id) DO UPDATE SET weight = excluded.weight`,
		userID, genreID, weight)
	if err != nil {
		return fmt.Errorf("set genre weight user=%d genre=%d: %w", userID, genreID, err)
	}
	return nil
}

// DeleteGenreWeight removes an explicit weight row, restoring the neutral default.
func (r *PreferencesRepository) DeleteGenreWeight(ctx context.Context, userID, genreID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_preferences WHERE user_id = ? AND genre_id = ?`, userID, genreID)
	if err != nil {
		return fmt.Errorf("delete genre weight user=%d genre=%d: %w", userID, genreID, err)
	}
	return nil
}

// Settings returns the user's settings row, or the defaults when none exists.
func (r *PreferencesRepository) Settings(ctx context.Context, userID int64) (models.UserSettings, error) {
	s := models.DefaultUserSettings(userID)
	err := r.db.QueryRowContext(ctx,
		`SELECT min_rating, year_from, year_to,
		        include_watch_history, include_ratings, include_favorites
		 FROM user_settings WHERE user_id = ?`, userID).
		Scan(&s.MinRating, &s.YearFrom, &s.YearTo,
			&s.IncludeWatchHistory, &s.IncludeRatings, &s.IncludeFavorites)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("settings for user %d: %w", userID, err)
	}
	return s, nil
}

// SaveSettings creates or replaces the user's settings row.
func (r *PreferencesRepository) SaveSettings(ctx context.Context, s models.UserSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings
		     (user_id, min_rating, year_from, year_to,
		      include_watch_history, include_ratings, include_favorites)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     min_rating = excluded.min_rating,
		     year_from = excluded.year_from,
		     year_to = excluded.year_to,
		     include_watch_history = excluded.include_watch_history,
		     include_ratings = excluded.include_ratings,
		     include_favorites = excluded.include_favorites`,
		s.UserID, s.MinRating, s.YearFrom, s.YearTo,
		s.IncludeWatchHistory, s.IncludeRatings, s.IncludeFavorites)
	if err != nil {
		return fmt.Errorf("save settings for user %d: %w", s.UserID, err)
	}
	return nil
}

// ActiveUserIDs returns every user id that left any preference, settings,
// history or favorites row. The refresh sweep walks this set.
func (r *PreferencesRepository) ActiveUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM user_preferences
		UNION SELECT user_id FROM user_settings
		UNION SELECT user_id FROM watch_history
		UNION SELECT user_id FROM favorites
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("active user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("active user ids: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
