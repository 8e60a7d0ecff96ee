package models

// Media types stored in the catalog's type column.
const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
)

// Credit roles attached to media people.
const (
	RoleActor    = "actor"
	RoleDirector = "director"
	RoleWriter   = "writer"
)

// Genre is a catalog genre shared across all media.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Person is an actor, director or writer credited on catalog titles.
type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Credit links a person to a title in a specific role.
type Credit struct {
	PersonID int64  `json:"personId"`
	Role     string `json:"role"`
}

// Media is a catalog title as the recommender sees it. The recommender reads
// media rows but never mutates them; the importer owns writes.
type Media struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	// NormalizedTitle is the ASCII-folded form the search collaborator
	// indexes; the importer fills it, display paths ignore it.
	NormalizedTitle string   `json:"-"`
	Year            int      `json:"year,omitempty"`
	Type            string   `json:"type"`
	PosterURL       string   `json:"posterUrl,omitempty"`
	Plot            string   `json:"plot,omitempty"`
	AverageRating   *float64 `json:"averageRating,omitempty"`
	NumVotes        int64    `json:"numVotes,omitempty"`
	GenreIDs        []int64  `json:"genreIds,omitempty"`
	Credits         []Credit `json:"credits,omitempty"`
}

// Candidate is a media row eligible for one scoring pass: the id plus the
// aggregates scoring needs, one row per media regardless of genre fan-out.
// A nil AverageRating means the title is unrated.
type Candidate struct {
	ID            int64
	Title         string
	Year          int
	AverageRating *float64
	NumVotes      int64
	GenreIDs      []int64
}
