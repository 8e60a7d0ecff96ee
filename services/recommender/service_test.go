package recommender

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cinerank/internal/database"
	"cinerank/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestService(db *database.DB, opts Options) *Service {
	return NewService(db.Catalog, db.Preferences, db.Activity, db.Recommendations, opts)
}

// seedGenres creates genres by name and returns name -> id.
func seedGenres(t *testing.T, db *database.DB, names ...string) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	ids := make(map[string]int64, len(names))
	for _, name := range names {
		id, err := db.Catalog.EnsureGenre(ctx, name)
		require.NoError(t, err)
		ids[name] = id
	}
	return ids
}

func seedMovie(t *testing.T, db *database.DB, id int64, title string, year int, rating *float64, votes int64, genreIDs ...int64) {
	t.Helper()
	ctx := context.Background()
	_, err := db.Catalog.UpsertMedia(ctx, &models.Media{
		ID:    id,
		Title: title,
		Year:  year,
		Type:  models.MediaTypeMovie,
	})
	require.NoError(t, err)
	if rating != nil || votes > 0 {
		require.NoError(t, db.Catalog.SetRating(ctx, id, rating, votes))
	}
	if len(genreIDs) > 0 {
		require.NoError(t, db.Catalog.SetGenres(ctx, id, genreIDs))
	}
}

func ratingOf(v float64) *float64 { return &v }

func TestRecommendationsGeneratesAndStores(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action", "Drama", "Comedy")

	seedMovie(t, db, 1, "Big Fight", 2010, ratingOf(8.0), 50000, genres["Action"])
	seedMovie(t, db, 2, "Sad Story", 2012, ratingOf(7.5), 20000, genres["Drama"])
	seedMovie(t, db, 3, "Laughs", 2015, ratingOf(6.5), 10000, genres["Comedy"])
	seedMovie(t, db, 4, "Seen It", 2011, ratingOf(9.0), 90000, genres["Action"])

	const userID = int64(1)
	require.NoError(t, db.Activity.RecordWatch(ctx, userID, 4, nil))
	require.NoError(t, db.Preferences.SetGenreWeight(ctx, userID, genres["Action"], 2.0))
	require.NoError(t, db.Preferences.SetGenreWeight(ctx, userID, genres["Drama"], 1.5))
	require.NoError(t, db.Preferences.SetGenreWeight(ctx, userID, genres["Comedy"], 1.0))

	svc := newTestService(db, Options{})
	views, err := svc.Recommendations(ctx, userID, 0, false)
	require.NoError(t, err)
	require.NotEmpty(t, views)

	for i, v := range views {
		require.Equal(t, i+1, v.Rank, "ranks must be dense 1..N")
		require.NotEqual(t, int64(4), v.MediaID, "watched titles must not be recommended")
		if i > 0 {
			require.LessOrEqual(t, v.Score, views[i-1].Score, "scores must descend with rank")
		}
	}

	// The heavily-weighted action title should outrank the rest.
	require.Equal(t, int64(1), views[0].MediaID)
}

func TestRefreshIdempotentForUnchangedData(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action", "Drama")

	seedMovie(t, db, 1, "Alpha", 2001, ratingOf(7.0), 5000, genres["Action"])
	seedMovie(t, db, 2, "Beta", 2002, ratingOf(7.0), 5000, genres["Action"])
	seedMovie(t, db, 3, "Gamma", 2003, ratingOf(8.0), 5000, genres["Drama"])

	const userID = int64(7)
	svc := newTestService(db, Options{})

	require.NoError(t, svc.Refresh(ctx, userID))
	first, err := db.Recommendations.ReadRanked(ctx, userID, 0)
	require.NoError(t, err)

	require.NoError(t, svc.Refresh(ctx, userID))
	second, err := db.Recommendations.ReadRanked(ctx, userID, 0)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].MediaID, second[i].MediaID)
		require.Equal(t, first[i].Rank, second[i].Rank)
		require.InDelta(t, first[i].Score, second[i].Score, 1e-12)
	}
}

func TestEmptyCandidatePoolIsValid(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action")

	seedMovie(t, db, 1, "Only Movie", 2010, ratingOf(8.0), 5000, genres["Action"])

	const userID = int64(3)
	require.NoError(t, db.Activity.RecordWatch(ctx, userID, 1, nil))

	svc := newTestService(db, Options{})
	views, err := svc.Recommendations(ctx, userID, 0, false)
	require.NoError(t, err, "an empty pool is a valid terminal state, not a failure")
	require.Empty(t, views)
}

func TestGenreOverlapFilterOnlyWithExplicitWeights(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action", "Romance")

	seedMovie(t, db, 1, "Explosions", 2010, ratingOf(7.0), 5000, genres["Action"])
	seedMovie(t, db, 2, "Letters", 2011, ratingOf(7.0), 5000, genres["Romance"])

	svc := newTestService(db, Options{})

	// A user with no preferences sees the full pool.
	views, err := svc.Recommendations(ctx, 1, 0, false)
	require.NoError(t, err)
	require.Len(t, views, 2)

	// A user who only weighted Action never sees the romance title.
	require.NoError(t, db.Preferences.SetGenreWeight(ctx, 2, genres["Action"], 2.0))
	views, err = svc.Recommendations(ctx, 2, 0, false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, int64(1), views[0].MediaID)
}

func TestUnratedTitlesPassTheRatingFloor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action")

	seedMovie(t, db, 1, "Unrated", 2010, nil, 0, genres["Action"])
	seedMovie(t, db, 2, "Too Low", 2011, ratingOf(4.0), 5000, genres["Action"])

	svc := newTestService(db, Options{})
	views, err := svc.Recommendations(ctx, 5, 0, false)
	require.NoError(t, err)

	require.Len(t, views, 1)
	require.Equal(t, int64(1), views[0].MediaID, "unrated titles fall through the floor")
}

func TestTVExcludedFromGeneration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Drama")

	seedMovie(t, db, 1, "The Movie", 2010, ratingOf(8.0), 5000, genres["Drama"])
	_, err := db.Catalog.UpsertMedia(ctx, &models.Media{
		ID: 2, Title: "The Show", Year: 2012, Type: models.MediaTypeTV,
	})
	require.NoError(t, err)
	require.NoError(t, db.Catalog.SetRating(ctx, 2, ratingOf(9.5), 100000))
	require.NoError(t, db.Catalog.SetGenres(ctx, 2, []int64{genres["Drama"]}))

	svc := newTestService(db, Options{})
	views, err := svc.Recommendations(ctx, 9, 0, false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, int64(1), views[0].MediaID)
}

func TestFreshSetIsServedWithoutRegeneration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action")

	seedMovie(t, db, 1, "First", 2010, ratingOf(8.0), 5000, genres["Action"])

	const userID = int64(11)
	svc := newTestService(db, Options{})
	require.NoError(t, svc.Refresh(ctx, userID))

	// New title arrives, but the stored set is still fresh.
	seedMovie(t, db, 2, "Second", 2011, ratingOf(9.0), 50000, genres["Action"])

	views, err := svc.Recommendations(ctx, userID, 0, false)
	require.NoError(t, err)
	require.Len(t, views, 1, "fresh cache served as-is")

	// Force refresh bypasses the freshness check.
	views, err = svc.Recommendations(ctx, userID, 0, true)
	require.NoError(t, err)
	require.Len(t, views, 2)
}

func TestStaleSetTriggersRegeneration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action")

	seedMovie(t, db, 1, "First", 2010, ratingOf(8.0), 5000, genres["Action"])

	const userID = int64(12)
	svc := newTestService(db, Options{})
	require.NoError(t, svc.Refresh(ctx, userID))

	seedMovie(t, db, 2, "Second", 2011, ratingOf(9.0), 50000, genres["Action"])

	// Move the clock past the max age.
	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	views, err := svc.Recommendations(ctx, userID, 0, false)
	require.NoError(t, err)
	require.Len(t, views, 2)
}

// failingStore passes reads through and fails every write.
type failingStore struct {
	RecommendationStore
}

func (f *failingStore) ReplaceAll(ctx context.Context, userID int64, ranked []models.ScoredMedia) error {
	return errors.New("disk full")
}

func TestFallbackToStoredSetOnWriteFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action")

	seedMovie(t, db, 1, "First", 2010, ratingOf(8.0), 5000, genres["Action"])

	const userID = int64(13)
	good := newTestService(db, Options{})
	require.NoError(t, good.Refresh(ctx, userID))

	broken := NewService(db.Catalog, db.Preferences, db.Activity,
		&failingStore{RecommendationStore: db.Recommendations}, Options{})

	// Force refresh fails to write, but the last-good set is served.
	views, err := broken.Recommendations(ctx, userID, 0, true)
	require.NoError(t, err)
	require.Len(t, views, 1)

	// With nothing stored, the failure propagates.
	_, err = broken.Recommendations(ctx, 99, 0, true)
	require.Error(t, err)
}

func TestMaxStoredCapsTheRankedList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action")

	for i := int64(1); i <= 10; i++ {
		seedMovie(t, db, i, "Movie", 2000+int(i), ratingOf(7.0), 5000, genres["Action"])
	}

	svc := newTestService(db, Options{MaxStored: 3})
	require.NoError(t, svc.Refresh(ctx, 21))

	views, err := db.Recommendations.ReadRanked(ctx, 21, 0)
	require.NoError(t, err)
	require.Len(t, views, 3)
}

func TestRefreshAllSweepsEveryUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action")

	seedMovie(t, db, 1, "Movie", 2010, ratingOf(8.0), 5000, genres["Action"])

	users := []int64{31, 32, 33, 34}
	for _, u := range users {
		require.NoError(t, db.Preferences.SetGenreWeight(ctx, u, genres["Action"], 1.5))
	}

	svc := newTestService(db, Options{RefreshConcurrency: 2})
	require.NoError(t, svc.RefreshAll(ctx, users))

	for _, u := range users {
		n, err := db.Recommendations.Count(ctx, u)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
}

func TestBuildProfileEmptyUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	svc := newTestService(db, Options{})
	profile, err := svc.buildProfile(ctx, 404)
	require.NoError(t, err, "a user with no rows degrades to a neutral profile")
	require.Empty(t, profile.GenreWeights)
	require.Empty(t, profile.History)
	require.Empty(t, profile.FavoriteGenreIDs)
	require.Empty(t, profile.WatchedGenreIDs)
	require.False(t, profile.HasGenrePreferences())
}

func TestBuildProfileCollectsGenreSets(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	genres := seedGenres(t, db, "Action", "Drama", "Comedy")

	seedMovie(t, db, 1, "Watched One", 2005, ratingOf(7.0), 1000, genres["Action"], genres["Drama"])
	seedMovie(t, db, 2, "Fave Movie", 2006, ratingOf(8.0), 2000, genres["Comedy"])

	const userID = int64(50)
	rating := 9
	require.NoError(t, db.Activity.RecordWatch(ctx, userID, 1, &rating))
	require.NoError(t, db.Activity.AddFavorite(ctx, userID, 2, database.FavoriteTypeMedia))
	require.NoError(t, db.Activity.AddFavorite(ctx, userID, genres["Drama"], database.FavoriteTypeGenre))

	svc := newTestService(db, Options{})
	profile, err := svc.buildProfile(ctx, userID)
	require.NoError(t, err)

	require.Contains(t, profile.WatchedGenreIDs, genres["Action"])
	require.Contains(t, profile.WatchedGenreIDs, genres["Drama"])
	require.Contains(t, profile.FavoriteGenreIDs, genres["Comedy"], "favorited media contributes its genres")
	require.Contains(t, profile.FavoriteGenreIDs, genres["Drama"], "directly favorited genre")
	require.Len(t, profile.History, 1)
	require.NotNil(t, profile.History[0].Rating)
	require.Equal(t, 9, *profile.History[0].Rating)
}
