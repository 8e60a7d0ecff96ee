package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/mattn/go-sqlite3"

	"cinerank/models"
)

// RecommendationRepository owns the user_recommendations table. It is the
// only writer; everything else reads through it.
type RecommendationRepository struct {
	db *sql.DB
}

// NewRecommendationRepository creates a recommendation repository backed by the given connection.
func NewRecommendationRepository(db *sql.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// ReplaceAll swaps the user's stored ranked set for the given one inside a
// single transaction: ranks are assigned 1..N from slice order and every row
// shares one generated_at stamp. Concurrent readers observe either the old
// set or the new set, never a mix. A busy database is retried a few times
// before the error surfaces.
func (r *RecommendationRepository) ReplaceAll(ctx context.Context, userID int64, ranked []models.ScoredMedia) error {
	generatedAt := time.Now().UTC()

	err := retry.Do(
		func() error {
			return r.replaceAll(ctx, userID, ranked, generatedAt)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(isBusy),
	)
	if err != nil {
		return fmt.Errorf("replace recommendations for user %d: %w", userID, err)
	}
	return nil
}

func (r *RecommendationRepository) replaceAll(ctx context.Context, userID int64, ranked []models.ScoredMedia, generatedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_recommendations WHERE user_id = ?`, userID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO user_recommendations (user_id, media_id, score, rank, generated_at)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range ranked {
		if _, err := stmt.ExecContext(ctx, userID, rec.MediaID, rec.Score, i+1, generatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// readRankedQuery caps the rank rows first, then joins live catalog data so
// titles, ratings and genres reflect the catalog as of the read while score
// and rank stay frozen at generation time.
const readRankedQuery = `
WITH current AS (
    SELECT media_id, score, rank, generated_at
    FROM user_recommendations
    WHERE user_id = ?
    ORDER BY rank
    LIMIT ?
)
SELECT c.media_id, m.title, m.year, m.type, m.poster_url,
       r.average_rating, r.num_votes,
       g.id, g.name,
       c.score, c.rank, c.generated_at
FROM current c
JOIN media m ON m.id = c.media_id
LEFT JOIN ratings r ON r.media_id = c.media_id
LEFT JOIN media_genres mg ON mg.media_id = c.media_id
LEFT JOIN genres g ON g.id = mg.genre_id
ORDER BY c.rank`

// ReadRanked returns the user's stored ranked set joined with live catalog
// data, ordered by rank ascending. A limit of 0 returns the full set.
// Read failures propagate; an empty result means no stored recommendations.
func (r *RecommendationRepository) ReadRanked(ctx context.Context, userID int64, limit int) ([]models.RankedMediaView, error) {
	sqlLimit := limit
	if sqlLimit <= 0 {
		sqlLimit = -1
	}

	rows, err := r.db.QueryContext(ctx, readRankedQuery, userID, sqlLimit)
	if err != nil {
		return nil, fmt.Errorf("read recommendations for user %d: %w", userID, err)
	}
	defer rows.Close()

	var (
		views []models.RankedMediaView
		index = make(map[int64]int)
	)
	for rows.Next() {
		var (
			mediaID     int64
			title       string
			year        sql.NullInt64
			mediaType   string
			posterURL   string
			rating      sql.NullFloat64
			votes       sql.NullInt64
			genreID     sql.NullInt64
			genreName   sql.NullString
			score       float64
			rank        int
			generatedAt time.Time
		)
		if err := rows.Scan(&mediaID, &title, &year, &mediaType, &posterURL,
			&rating, &votes, &genreID, &genreName, &score, &rank, &generatedAt); err != nil {
			return nil, fmt.Errorf("read recommendations for user %d: %w", userID, err)
		}

		i, ok := index[mediaID]
		if !ok {
			v := models.RankedMediaView{
				MediaID:     mediaID,
				Title:       title,
				Year:        int(year.Int64),
				Type:        mediaType,
				PosterURL:   posterURL,
				NumVotes:    votes.Int64,
				Score:       score,
				Rank:        rank,
				GeneratedAt: generatedAt,
			}
			if rating.Valid {
				val := rating.Float64
				v.AverageRating = &val
			}
			views = append(views, v)
			i = len(views) - 1
			index[mediaID] = i
		}
		if genreID.Valid {
			views[i].Genres = append(views[i].Genres, models.Genre{
				ID:   genreID.Int64,
				Name: genreName.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read recommendations for user %d: %w", userID, err)
	}
	return views, nil
}

// LastGeneratedAt returns the timestamp of the user's current stored set.
// ok is false when the user has no stored rows.
func (r *RecommendationRepository) LastGeneratedAt(ctx context.Context, userID int64) (generatedAt time.Time, ok bool, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT generated_at FROM user_recommendations
		 WHERE user_id = ?
		 ORDER BY generated_at DESC
		 LIMIT 1`, userID).Scan(&generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last generated at for user %d: %w", userID, err)
	}
	return generatedAt, true, nil
}

// Count returns the number of stored rows for a user.
func (r *RecommendationRepository) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_recommendations WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recommendations for user %d: %w", userID, err)
	}
	return n, nil
}
