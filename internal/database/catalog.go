package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"cinerank/models"
)

// CatalogRepository provides read access to the media catalog and the write
// operations the importer needs. The recommender only ever reads from it.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a catalog repository backed by the given connection.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// candidateQuery selects eligible media ids first, then re-joins genres so
// the fan-out never interacts with the eligibility cap. One output row per
// (media, genre); grouping back into typed candidates happens in Go.
const candidateQuery = `
WITH eligible AS (
    SELECT m.id
    FROM media m
    LEFT JOIN ratings r ON r.media_id = m.id
    WHERE m.type = 'movie'
      AND m.year >= ? AND m.year <= ?
      AND (r.average_rating IS NULL OR r.average_rating >= ?)
      AND NOT EXISTS (
          SELECT 1 FROM watch_history wh
          WHERE wh.user_id = ? AND wh.media_id = m.id
      )
      AND (? = 0 OR EXISTS (
          SELECT 1 FROM media_genres mg
          JOIN user_preferences up ON up.genre_id = mg.genre_id AND up.user_id = ?
          WHERE mg.media_id = m.id
      ))
    ORDER BY m.id
    LIMIT ?
)
SELECT m.id, m.title, m.year, r.average_rating, r.num_votes, mg.genre_id
FROM eligible e
JOIN media m ON m.id = e.id
LEFT JOIN ratings r ON r.media_id = m.id
LEFT JOIN media_genres mg ON mg.media_id = m.id
ORDER BY m.id`

// SelectCandidates returns the media eligible for one generation pass:
// movies inside the settings' year window, not in the user's watch history,
// and rated at or above the floor (unrated titles pass the floor and fall
// through to a neutral rating term). When requireGenreMatch is set, titles
// must share at least one genre with the user's explicit preference rows;
// users without any preference rows see the unfiltered pool.
func (r *CatalogRepository) SelectCandidates(ctx context.Context, userID int64, settings models.UserSettings, requireGenreMatch bool, limit int) ([]models.Candidate, error) {
	match := 0
	if requireGenreMatch {
		match = 1
	}

	rows, err := r.db.QueryContext(ctx, candidateQuery,
		settings.YearFrom, settings.YearTo, settings.MinRating,
		userID, match, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	defer rows.Close()

	var (
		candidates []models.Candidate
		index      = make(map[int64]int)
		skipped    int
	)

	for rows.Next() {
		var (
			id      int64
			title   string
			year    sql.NullInt64
			rating  sql.NullFloat64
			votes   sql.NullInt64
			genreID sql.NullInt64
		)
		if err := rows.Scan(&id, &title, &year, &rating, &votes, &genreID); err != nil {
			// A malformed row poisons one candidate, not the batch.
			skipped++
			continue
		}

		i, ok := index[id]
		if !ok {
			c := models.Candidate{
				ID:       id,
				Title:    title,
				Year:     int(year.Int64),
				NumVotes: votes.Int64,
			}
			if rating.Valid {
				v := rating.Float64
				c.AverageRating = &v
			}
			candidates = append(candidates, c)
			i = len(candidates) - 1
			index[id] = i
		}
		if genreID.Valid {
			candidates[i].GenreIDs = append(candidates[i].GenreIDs, genreID.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	if skipped > 0 {
		slog.Warn("catalog.candidates_skipped", "user_id", userID, "skipped", skipped)
	}

	return candidates, nil
}

// ListGenres returns all genres ordered by name.
func (r *CatalogRepository) ListGenres(ctx context.Context) ([]models.Genre, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM genres ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	var genres []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("list genres: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// EnsureGenre inserts the genre when missing and returns its id either way.
func (r *CatalogRepository) EnsureGenre(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO genres (name) VALUES (?)
		 ON CONFLICT (name) DO UPDATE SET name = excluded.name
		 RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure genre %q: %w", name, err)
	}
	return id, nil
}

// UpsertMedia inserts or updates a catalog title. A zero ID lets SQLite
// assign one; the importer passes explicit ids so reimports stay stable.
func (r *CatalogRepository) UpsertMedia(ctx context.Context, m *models.Media) (int64, error) {
	if m.ID == 0 {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO media (title, title_normalized, year, type, plot, poster_url)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.Title, normalizedOrTitle(m), nullableYear(m.Year), m.Type, m.Plot, m.PosterURL)
		if err != nil {
			return 0, fmt.Errorf("insert media %q: %w", m.Title, err)
		}
		return res.LastInsertId()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO media (id, title, title_normalized, year, type, plot, poster_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     title = excluded.title,
		     title_normalized = excluded.title_normalized,
		     year = excluded.year,
		     type = excluded.type,
		     plot = excluded.plot,
		     poster_url = excluded.poster_url`,
		m.ID, m.Title, normalizedOrTitle(m), nullableYear(m.Year), m.Type, m.Plot, m.PosterURL)
	if err != nil {
		return 0, fmt.Errorf("upsert media %d: %w", m.ID, err)
	}
	return m.ID, nil
}

// SetRating inserts or replaces the aggregate rating row for a title.
// A nil rating records the title as unrated while keeping the vote count.
func (r *CatalogRepository) SetRating(ctx context.Context, mediaID int64, rating *float64, votes int64) error {
	var ratingVal any
	if rating != nil {
		ratingVal = *rating
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ratings (media_id, average_rating, num_votes) VALUES (?, ?, ?)
		 ON CONFLICT (media_id) DO UPDATE SET
		     average_rating = excluded.average_rating,
		     num_votes = excluded.num_votes`,
		mediaID, ratingVal, votes)
	if err != nil {
		return fmt.Errorf("set rating %d: %w", mediaID, err)
	}
	return nil
}

// SetGenres replaces a title's genre links.
func (r *CatalogRepository) SetGenres(ctx context.Context, mediaID int64, genreIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set genres %d: %w", mediaID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media_genres WHERE media_id = ?`, mediaID); err != nil {
		return fmt.Errorf("set genres %d: %w", mediaID, err)
	}
	for _, gid := range genreIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO media_genres (media_id, genre_id) VALUES (?, ?)`, mediaID, gid); err != nil {
			return fmt.Errorf("set genres %d: %w", mediaID, err)
		}
	}
	return tx.Commit()
}

// UpsertPerson inserts or updates a person row.
func (r *CatalogRepository) UpsertPerson(ctx context.Context, p *models.Person) (int64, error) {
	if p.ID == 0 {
		res, err := r.db.ExecContext(ctx, `INSERT INTO people (name) VALUES (?)`, p.Name)
		if err != nil {
			return 0, fmt.Errorf("insert person %q: %w", p.Name, err)
		}
		return res.LastInsertId()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO people (id, name) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name`, p.ID, p.Name)
	if err != nil {
		return 0, fmt.Errorf("upsert person %d: %w", p.ID, err)
	}
	return p.ID, nil
}

// AddCredit links a person to a title in a role. Duplicate links are ignored.
func (r *CatalogRepository) AddCredit(ctx context.Context, mediaID, personID int64, role string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO media_people (media_id, person_id, role) VALUES (?, ?, ?)`,
		mediaID, personID, role)
	if err != nil {
		return fmt.Errorf("add credit %d/%d: %w", mediaID, personID, err)
	}
	return nil
}

func nullableYear(year int) any {
	if year == 0 {
		return nil
	}
	return year
}

func normalizedOrTitle(m *models.Media) string {
	// Importer fills this via unidecode; direct inserts fall back to the title.
	if m.NormalizedTitle != "" {
		return m.NormalizedTitle
	}
	return m.Title
}
