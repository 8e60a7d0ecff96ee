package recommender

import (
	"math"
	"testing"

	"cinerank/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestGenreTermAveragesWeights(t *testing.T) {
	weights := map[int64]float64{1: 2.0, 2: 1.0}
	if got := genreTerm([]int64{1, 2}, weights); !almostEqual(got, 1.5) {
		t.Fatalf("expected 1.5, got %v", got)
	}
}

func TestGenreTermDefaultsToNeutralWeight(t *testing.T) {
	if got := genreTerm([]int64{7, 8, 9}, map[int64]float64{}); !almostEqual(got, 1.0) {
		t.Fatalf("expected neutral 1.0, got %v", got)
	}
}

func TestGenreTermNoGenres(t *testing.T) {
	if got := genreTerm(nil, map[int64]float64{1: 3.0}); got != 0 {
		t.Fatalf("expected 0 for candidate without genres, got %v", got)
	}
}

func TestRatingTermVoteConfidence(t *testing.T) {
	rating := 8.0
	// log10(100)/4 = 0.5, (8-5)/5 = 0.6 -> 0.3
	if got := ratingTerm(&rating, 99); !almostEqual(got, 0.3) {
		t.Fatalf("expected 0.3, got %v", got)
	}
}

func TestRatingTermNilRating(t *testing.T) {
	if got := ratingTerm(nil, 100000); got != 0 {
		t.Fatalf("expected 0 for unrated title, got %v", got)
	}
}

func TestRatingTermPenalizesLowRatings(t *testing.T) {
	rating := 3.0
	if got := ratingTerm(&rating, 9999); got >= 0 {
		t.Fatalf("expected negative term for rating below 5, got %v", got)
	}
}

func TestRatingTermMonotonicInVotes(t *testing.T) {
	rating := 8.0
	prev := ratingTerm(&rating, 0)
	if prev != 0 {
		t.Fatalf("expected zero confidence at zero votes, got %v", prev)
	}
	for _, votes := range []int64{1, 10, 100, 1000, 9999, 100000, 10000000} {
		got := ratingTerm(&rating, votes)
		if got < prev {
			t.Fatalf("rating term decreased at %d votes: %v -> %v", votes, prev, got)
		}
		prev = got
	}
	// Confidence caps at 1: the term equals the normalized rating.
	if !almostEqual(prev, 0.6) {
		t.Fatalf("expected capped term 0.6, got %v", prev)
	}
}

func TestJaccard(t *testing.T) {
	set := map[int64]struct{}{1: {}, 2: {}}

	if got := jaccard([]int64{1, 2}, set); !almostEqual(got, 1.0) {
		t.Fatalf("expected 1.0 for full overlap, got %v", got)
	}
	if got := jaccard([]int64{3, 4}, set); got != 0 {
		t.Fatalf("expected 0 for disjoint sets, got %v", got)
	}
	if got := jaccard([]int64{1, 3}, set); !almostEqual(got, 1.0/3.0) {
		t.Fatalf("expected 1/3, got %v", got)
	}
	if got := jaccard(nil, set); got != 0 {
		t.Fatalf("expected 0 for empty candidate set, got %v", got)
	}
	if got := jaccard([]int64{1}, nil); got != 0 {
		t.Fatalf("expected 0 for empty profile set, got %v", got)
	}
}

func TestJaccardIgnoresDuplicateGenres(t *testing.T) {
	set := map[int64]struct{}{1: {}, 2: {}}
	if got := jaccard([]int64{1, 1, 2, 2}, set); !almostEqual(got, 1.0) {
		t.Fatalf("expected duplicates to collapse, got %v", got)
	}
}

func TestScoreNeutralProfile(t *testing.T) {
	// No preferences, history or favorites: score = 0.30*1.0 + 0.40*rating term.
	rating := 8.0
	c := models.Candidate{ID: 1, AverageRating: &rating, NumVotes: 99, GenreIDs: []int64{1, 2}}
	profile := &models.UserProfile{
		UserID:           42,
		GenreWeights:     map[int64]float64{},
		FavoriteGenreIDs: map[int64]struct{}{},
		WatchedGenreIDs:  map[int64]struct{}{},
	}
	settings := models.DefaultUserSettings(42)

	want := 0.30*1.0 + 0.40*0.3
	if got := scoreCandidate(c, profile, settings); !almostEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestScoreWeightedGenres(t *testing.T) {
	// Worked example: weights {Action:2.0, Drama:1.0}, candidate has both ->
	// genre term 1.5, contributing 0.45.
	c := models.Candidate{ID: 1, GenreIDs: []int64{1, 2}}
	profile := &models.UserProfile{
		UserID:           42,
		GenreWeights:     map[int64]float64{1: 2.0, 2: 1.0},
		FavoriteGenreIDs: map[int64]struct{}{},
		WatchedGenreIDs:  map[int64]struct{}{},
	}
	settings := models.DefaultUserSettings(42)

	if got := scoreCandidate(c, profile, settings); !almostEqual(got, 0.45) {
		t.Fatalf("expected 0.45, got %v", got)
	}
}

func TestScoreFavoritesAmplification(t *testing.T) {
	// Full favorites overlap: 1.5 * 1.0 * 0.15 = 0.225 on top of the genre term.
	c := models.Candidate{ID: 1, GenreIDs: []int64{1, 2}}
	profile := &models.UserProfile{
		UserID:           42,
		GenreWeights:     map[int64]float64{},
		FavoriteGenreIDs: map[int64]struct{}{1: {}, 2: {}},
		WatchedGenreIDs:  map[int64]struct{}{},
	}
	settings := models.DefaultUserSettings(42)

	want := 0.30*1.0 + 0.225
	if got := scoreCandidate(c, profile, settings); !almostEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestScoreHistorySimilarity(t *testing.T) {
	c := models.Candidate{ID: 1, GenreIDs: []int64{1, 3}}
	profile := &models.UserProfile{
		UserID:           42,
		GenreWeights:     map[int64]float64{},
		FavoriteGenreIDs: map[int64]struct{}{},
		WatchedGenreIDs:  map[int64]struct{}{1: {}, 2: {}},
	}
	settings := models.DefaultUserSettings(42)

	// Jaccard({1,3},{1,2}) = 1/3.
	want := 0.30*1.0 + 0.15*(1.0/3.0)
	if got := scoreCandidate(c, profile, settings); !almostEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestScoreRespectsSettingsGates(t *testing.T) {
	rating := 9.0
	c := models.Candidate{ID: 1, AverageRating: &rating, NumVotes: 100000, GenreIDs: []int64{1}}
	profile := &models.UserProfile{
		UserID:           42,
		GenreWeights:     map[int64]float64{},
		FavoriteGenreIDs: map[int64]struct{}{1: {}},
		WatchedGenreIDs:  map[int64]struct{}{1: {}},
	}
	settings := models.DefaultUserSettings(42)
	settings.IncludeRatings = false
	settings.IncludeWatchHistory = false
	settings.IncludeFavorites = false

	// Only the genre term survives.
	if got := scoreCandidate(c, profile, settings); !almostEqual(got, 0.30) {
		t.Fatalf("expected bare genre term 0.30, got %v", got)
	}
}
