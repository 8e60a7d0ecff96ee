package recommender

import (
	"context"
	"fmt"

	"cinerank/models"
)

// buildProfile assembles the user's taste profile from the preference,
// history and favorites stores. A user with no stored rows gets a profile of
// empty collections, never an error; downstream scoring then degrades to
// neutral defaults. The caller is responsible for the user actually existing.
func (s *Service) buildProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	weights, err := s.prefs.GenreWeights(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build profile: %w", err)
	}

	history, err := s.activity.WatchHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build profile: %w", err)
	}

	favorites, err := s.activity.Favorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build profile: %w", err)
	}

	favoriteGenres, err := s.activity.FavoriteGenreIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build profile: %w", err)
	}

	profile := &models.UserProfile{
		UserID:           userID,
		GenreWeights:     weights,
		Favorites:        favorites,
		FavoriteGenreIDs: make(map[int64]struct{}, len(favoriteGenres)),
		WatchedGenreIDs:  make(map[int64]struct{}),
		History:          history,
	}

	for _, id := range favoriteGenres {
		profile.FavoriteGenreIDs[id] = struct{}{}
	}
	for _, item := range history {
		for _, id := range item.GenreIDs {
			profile.WatchedGenreIDs[id] = struct{}{}
		}
	}

	return profile, nil
}
