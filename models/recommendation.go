package models

import "time"

// Default user settings applied when a user has no settings row.
const (
	DefaultMinRating = 6.0
	DefaultYearFrom  = 1900
	DefaultYearTo    = 2024
)

// UserSettings controls candidate filtering and which score terms apply.
type UserSettings struct {
	UserID              int64   `json:"userId"`
	MinRating           float64 `json:"minRating"`
	YearFrom            int     `json:"yearFrom"`
	YearTo              int     `json:"yearTo"`
	IncludeWatchHistory bool    `json:"includeWatchHistory"`
	IncludeRatings      bool    `json:"includeRatings"`
	IncludeFavorites    bool    `json:"includeFavorites"`
}

// DefaultUserSettings returns the settings used for users who never saved any.
func DefaultUserSettings(userID int64) UserSettings {
	return UserSettings{
		UserID:              userID,
		MinRating:           DefaultMinRating,
		YearFrom:            DefaultYearFrom,
		YearTo:              DefaultYearTo,
		IncludeWatchHistory: true,
		IncludeRatings:      true,
		IncludeFavorites:    true,
	}
}

// ScoredMedia pairs a media id with its composite score for one generation
// pass. Slice order is the ranked order.
type ScoredMedia struct {
	MediaID int64   `json:"mediaId"`
	Score   float64 `json:"score"`
}

// RankedRecommendation is one persisted row of a user's current ranked set.
// Ranks are a dense 1..N sequence in descending score order at write time.
type RankedRecommendation struct {
	UserID      int64     `json:"userId"`
	MediaID     int64     `json:"mediaId"`
	Score       float64   `json:"score"`
	Rank        int       `json:"rank"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// RankedMediaView is a stored rank row joined against live catalog data.
// Score and Rank are frozen at generation time; title, rating and genre
// fields reflect the catalog as of the read.
type RankedMediaView struct {
	MediaID       int64     `json:"mediaId"`
	Title         string    `json:"title"`
	Year          int       `json:"year,omitempty"`
	Type          string    `json:"type"`
	PosterURL     string    `json:"posterUrl,omitempty"`
	AverageRating *float64  `json:"averageRating,omitempty"`
	NumVotes      int64     `json:"numVotes,omitempty"`
	Genres        []Genre   `json:"genres,omitempty"`
	Score         float64   `json:"score"`
	Rank          int       `json:"rank"`
	GeneratedAt   time.Time `json:"generatedAt"`
}
