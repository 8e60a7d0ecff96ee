package recommender

import (
	"math"

	"cinerank/models"
)

// Composite score weights. They sum to 1.0; the favorites boost can push the
// favorites term above 1.0 before its envelope applies, which is intentional
// amplification rather than a bug.
const (
	genreTermWeight     = 0.30
	ratingTermWeight    = 0.40
	historyTermWeight   = 0.15
	favoritesTermWeight = 0.15

	favoritesBoost = 1.5

	// log10(votes+1)/voteConfidenceDivisor, capped at 1. Full confidence is
	// reached at 10^4-1 votes.
	voteConfidenceDivisor = 4.0
)

// scoreCandidate computes the weighted composite score for one candidate.
// Scores are comparison-only: they are neither clamped nor displayed as a
// percentage, and a low-rated title can legitimately go negative.
func scoreCandidate(c models.Candidate, profile *models.UserProfile, settings models.UserSettings) float64 {
	score := genreTermWeight * genreTerm(c.GenreIDs, profile.GenreWeights)

	if settings.IncludeRatings {
		score += ratingTermWeight * ratingTerm(c.AverageRating, c.NumVotes)
	}
	if settings.IncludeWatchHistory {
		score += historyTermWeight * jaccard(c.GenreIDs, profile.WatchedGenreIDs)
	}
	if settings.IncludeFavorites {
		score += favoritesTermWeight * favoritesBoost * jaccard(c.GenreIDs, profile.FavoriteGenreIDs)
	}

	return score
}

// genreTerm averages the user's weight across the candidate's genres,
// defaulting to the neutral 1.0 for genres without an explicit row. A
// candidate with no genres contributes nothing from this term.
func genreTerm(genreIDs []int64, weights map[int64]float64) float64 {
	if len(genreIDs) == 0 {
		return 0
	}
	total := 0.0
	for _, id := range genreIDs {
		w, ok := weights[id]
		if !ok {
			w = 1.0
		}
		total += w
	}
	return total / float64(len(genreIDs))
}

// ratingTerm normalizes the catalog rating from [5,10] to [0,1] and damps it
// by vote confidence: titles backed by almost no votes contribute almost
// nothing regardless of the numeric rating. Ratings below 5 go negative,
// penalizing low-rated titles. Unrated titles contribute zero.
func ratingTerm(rating *float64, numVotes int64) float64 {
	if rating == nil {
		return 0
	}
	normalized := (*rating - 5) / 5
	confidence := math.Min(1, math.Log10(float64(numVotes)+1)/voteConfidenceDivisor)
	return normalized * confidence
}

// jaccard computes |A∩B| / |A∪B| between a candidate's genre list and a
// profile genre set. Either side empty yields 0.
func jaccard(genreIDs []int64, set map[int64]struct{}) float64 {
	if len(genreIDs) == 0 || len(set) == 0 {
		return 0
	}
	intersection := 0
	seen := make(map[int64]struct{}, len(genreIDs))
	for _, id := range genreIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := set[id]; ok {
			intersection++
		}
	}
	union := len(seen) + len(set) - intersection
	return float64(intersection) / float64(union)
}
