package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"cinerank/internal/database"
	"cinerank/models"
)

// CatalogStore is the read interface to the media catalog.
type CatalogStore interface {
	SelectCandidates(ctx context.Context, userID int64, settings models.UserSettings, requireGenreMatch bool, limit int) ([]models.Candidate, error)
}

// PreferenceStore is the read interface to genre weights and user settings.
type PreferenceStore interface {
	GenreWeights(ctx context.Context, userID int64) (map[int64]float64, error)
	Settings(ctx context.Context, userID int64) (models.UserSettings, error)
}

// ActivityStore is the read interface to watch history and favorites.
type ActivityStore interface {
	WatchHistory(ctx context.Context, userID int64) ([]models.WatchedItem, error)
	Favorites(ctx context.Context, userID int64) (models.FavoriteSet, error)
	FavoriteGenreIDs(ctx context.Context, userID int64) ([]int64, error)
}

// RecommendationStore persists ranked sets and serves them back.
type RecommendationStore interface {
	ReplaceAll(ctx context.Context, userID int64, ranked []models.ScoredMedia) error
	ReadRanked(ctx context.Context, userID int64, limit int) ([]models.RankedMediaView, error)
	LastGeneratedAt(ctx context.Context, userID int64) (time.Time, bool, error)
}

var (
	_ CatalogStore        = (*database.CatalogRepository)(nil)
	_ PreferenceStore     = (*database.PreferencesRepository)(nil)
	_ ActivityStore       = (*database.ActivityRepository)(nil)
	_ RecommendationStore = (*database.RecommendationRepository)(nil)
)

// Options tunes one recommender instance. Zero values take the defaults.
type Options struct {
	// MaxAge is how old a stored set may be before it counts as stale.
	MaxAge time.Duration
	// MaxStored caps the ranked list written per generation.
	MaxStored int
	// CandidateLimit is the query-side cap on the candidate pool.
	CandidateLimit int
	// RefreshConcurrency bounds the RefreshAll worker pool.
	RefreshConcurrency int
}

const (
	defaultMaxAge             = 24 * time.Hour
	defaultMaxStored          = 100
	defaultCandidateLimit     = 5000
	defaultRefreshConcurrency = 4
)

// Service runs the recommendation pipeline: profile building, candidate
// selection, scoring, and the freshness decision around the stored set.
// Stores are injected; the service holds no other state, so one instance
// can serve concurrent requests for different users.
type Service struct {
	catalog  CatalogStore
	prefs    PreferenceStore
	activity ActivityStore
	store    RecommendationStore
	opts     Options

	now func() time.Time
}

// NewService returns a recommender wired to the given stores.
func NewService(catalog CatalogStore, prefs PreferenceStore, activity ActivityStore, store RecommendationStore, opts Options) *Service {
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultMaxAge
	}
	if opts.MaxStored <= 0 {
		opts.MaxStored = defaultMaxStored
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = defaultCandidateLimit
	}
	if opts.RefreshConcurrency <= 0 {
		opts.RefreshConcurrency = defaultRefreshConcurrency
	}
	return &Service{
		catalog:  catalog,
		prefs:    prefs,
		activity: activity,
		store:    store,
		opts:     opts,
		now:      time.Now,
	}
}

// Recommendations serves the user's ranked list, regenerating first when the
// stored set is missing, stale, or a refresh is forced. When regeneration
// fails but an older set exists, the older set is served; with nothing to
// fall back to the failure propagates. limit <= 0 returns the full set.
func (s *Service) Recommendations(ctx context.Context, userID int64, limit int, forceRefresh bool) ([]models.RankedMediaView, error) {
	refresh := forceRefresh
	if !refresh {
		stale, err := s.NeedsRefresh(ctx, userID)
		if err != nil {
			return nil, err
		}
		refresh = stale
	}

	if refresh {
		if err := s.Refresh(ctx, userID); err != nil {
			stored, readErr := s.store.ReadRanked(ctx, userID, limit)
			if readErr == nil && len(stored) > 0 {
				slog.Warn("recommender.serving_stale_after_failure",
					"user_id", userID, "error", err)
				return stored, nil
			}
			return nil, err
		}
	}

	return s.store.ReadRanked(ctx, userID, limit)
}

// NeedsRefresh reports whether the stored set is absent or older than MaxAge.
func (s *Service) NeedsRefresh(ctx context.Context, userID int64) (bool, error) {
	generatedAt, ok, err := s.store.LastGeneratedAt(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return s.now().UTC().Sub(generatedAt) > s.opts.MaxAge, nil
}

// Refresh regenerates and stores the user's ranked set unconditionally.
// An empty generation result is a valid outcome and clears the stored set.
func (s *Service) Refresh(ctx context.Context, userID int64) error {
	start := s.now()

	ranked, err := s.generate(ctx, userID)
	if err != nil {
		return fmt.Errorf("generate recommendations for user %d: %w", userID, err)
	}

	if err := s.store.ReplaceAll(ctx, userID, ranked); err != nil {
		return err
	}

	slog.Info("recommender.refreshed",
		"user_id", userID,
		"stored", len(ranked),
		"took", time.Since(start))
	return nil
}

// RefreshAll regenerates stored sets for the given users with a bounded
// worker pool. Users are independent, so failures don't stop the sweep; the
// joined error reports every user that failed.
func (s *Service) RefreshAll(ctx context.Context, userIDs []int64) error {
	p := pool.New().
		WithErrors().
		WithMaxGoroutines(s.opts.RefreshConcurrency)

	for _, userID := range userIDs {
		p.Go(func() error {
			if err := s.Refresh(ctx, userID); err != nil {
				slog.Warn("recommender.sweep_user_failed", "user_id", userID, "error", err)
				return err
			}
			return nil
		})
	}
	return p.Wait()
}

// generate runs the scoring pipeline: build the profile, select candidates,
// score them, then order by descending score with the catalog's query order
// breaking ties. Non-positive scores are dropped and the result is capped at
// MaxStored. An empty candidate pool yields an empty, valid result.
func (s *Service) generate(ctx context.Context, userID int64) ([]models.ScoredMedia, error) {
	profile, err := s.buildProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings, err := s.prefs.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.catalog.SelectCandidates(ctx, userID, settings,
		profile.HasGenrePreferences(), s.opts.CandidateLimit)
	if err != nil {
		return nil, err
	}

	scored := make([]models.ScoredMedia, 0, len(candidates))
	for _, c := range candidates {
		score := scoreCandidate(c, profile, settings)
		if score <= 0 {
			continue
		}
		scored = append(scored, models.ScoredMedia{MediaID: c.ID, Score: score})
	}

	// Stable keeps ties in query order, which makes regeneration
	// deterministic for unchanged inputs.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > s.opts.MaxStored {
		scored = scored[:s.opts.MaxStored]
	}
	return scored, nil
}
