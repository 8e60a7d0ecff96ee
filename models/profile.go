package models

// WatchedItem is one deduplicated watch-history row with the watched title's
// genre set attached. Rating is nil when the user never rated the title.
type WatchedItem struct {
	MediaID  int64   `json:"mediaId"`
	Rating   *int    `json:"rating,omitempty"`
	Year     int     `json:"year,omitempty"`
	GenreIDs []int64 `json:"genreIds,omitempty"`
}

// FavoritePerson is a favorited person together with the role they are
// credited under in the catalog.
type FavoritePerson struct {
	PersonID int64  `json:"personId"`
	Role     string `json:"role,omitempty"`
}

// FavoriteSet holds a user's favorites split by item type.
type FavoriteSet struct {
	MediaIDs  []int64          `json:"mediaIds,omitempty"`
	People    []FavoritePerson `json:"people,omitempty"`
	GenreIDs  []int64          `json:"genreIds,omitempty"`
}

// UserProfile is the derived taste profile one scoring pass runs against.
// It is rebuilt from the preference, history and favorites stores on every
// generation and never persisted. A user with no stored rows gets empty
// collections, not an error; scoring then degrades to neutral defaults.
type UserProfile struct {
	UserID int64

	// GenreWeights holds only explicit preference rows. Genres absent from
	// the map carry the neutral weight 1.0 at scoring time.
	GenreWeights map[int64]float64

	Favorites FavoriteSet

	// FavoriteGenreIDs is the union of directly favorited genres and the
	// genres of favorited media.
	FavoriteGenreIDs map[int64]struct{}

	// WatchedGenreIDs is the union of genre sets across all watched media.
	WatchedGenreIDs map[int64]struct{}

	History []WatchedItem
}

// HasGenrePreferences reports whether the user set any explicit genre weight.
func (p *UserProfile) HasGenrePreferences() bool {
	return len(p.GenreWeights) > 0
}
