package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"cinerank/models"
)

type fakePreferenceStore struct {
	weights  map[int64]float64
	settings map[int64]models.UserSettings
}

func newFakePreferenceStore() *fakePreferenceStore {
	return &fakePreferenceStore{
		weights:  make(map[int64]float64),
		settings: make(map[int64]models.UserSettings),
	}
}

func (f *fakePreferenceStore) GenreWeights(_ context.Context, _ int64) (map[int64]float64, error) {
	return f.weights, nil
}

func (f *fakePreferenceStore) SetGenreWeight(_ context.Context, _, genreID int64, weight float64) error {
	f.weights[genreID] = weight
	return nil
}

func (f *fakePreferenceStore) DeleteGenreWeight(_ context.Context, _, genreID int64) error {
	delete(f.weights, genreID)
	return nil
}

func (f *fakePreferenceStore) Settings(_ context.Context, userID int64) (models.UserSettings, error) {
	if s, ok := f.settings[userID]; ok {
		return s, nil
	}
	return models.DefaultUserSettings(userID), nil
}

func (f *fakePreferenceStore) SaveSettings(_ context.Context, s models.UserSettings) error {
	f.settings[s.UserID] = s
	return nil
}

type fakeGenreLister struct {
	genres []models.Genre
}

func (f *fakeGenreLister) ListGenres(_ context.Context) ([]models.Genre, error) {
	return f.genres, nil
}

func newPreferencesRouter(store *fakePreferenceStore) *mux.Router {
	r := mux.NewRouter()
	NewPreferencesHandler(store, &fakeGenreLister{genres: []models.Genre{{ID: 1, Name: "Action"}}}).Register(r)
	return r
}

func TestListGenres(t *testing.T) {
	router := newPreferencesRouter(newFakePreferenceStore())

	req := httptest.NewRequest(http.MethodGet, "/api/genres", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var genres []models.Genre
	if err := json.NewDecoder(rec.Body).Decode(&genres); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(genres) != 1 || genres[0].Name != "Action" {
		t.Fatalf("unexpected genres: %+v", genres)
	}
}

func TestGetSettingsReturnsDefaults(t *testing.T) {
	router := newPreferencesRouter(newFakePreferenceStore())

	req := httptest.NewRequest(http.MethodGet, "/api/users/5/settings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var settings models.UserSettings
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if settings.MinRating != models.DefaultMinRating {
		t.Fatalf("expected default min rating, got %v", settings.MinRating)
	}
	if !settings.IncludeFavorites {
		t.Fatal("expected favorites included by default")
	}
}

func TestPutSettings(t *testing.T) {
	store := newFakePreferenceStore()
	router := newPreferencesRouter(store)

	body := `{"minRating":7.5,"yearFrom":1990,"yearTo":2020,"includeWatchHistory":false}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/5/settings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	saved := store.settings[5]
	if saved.MinRating != 7.5 || saved.YearFrom != 1990 || saved.IncludeWatchHistory {
		t.Fatalf("unexpected saved settings: %+v", saved)
	}
	// Fields omitted from the request keep their defaults.
	if !saved.IncludeFavorites {
		t.Fatal("expected omitted field to keep its default")
	}
}

func TestPutSettingsRejectsInvertedYearRange(t *testing.T) {
	router := newPreferencesRouter(newFakePreferenceStore())

	body := `{"yearFrom":2020,"yearTo":1990}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/5/settings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPutSettingsRejectsUnknownFields(t *testing.T) {
	router := newPreferencesRouter(newFakePreferenceStore())

	body := `{"minRating":7.0,"bogus":true}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/5/settings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPutAndDeleteWeight(t *testing.T) {
	store := newFakePreferenceStore()
	router := newPreferencesRouter(store)

	req := httptest.NewRequest(http.MethodPut, "/api/users/5/preferences/3", strings.NewReader(`{"weight":2.0}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.weights[3] != 2.0 {
		t.Fatalf("expected weight stored, got %v", store.weights)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/users/5/preferences/3", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := store.weights[3]; ok {
		t.Fatal("expected weight removed")
	}
}

func TestPutWeightRejectsNegative(t *testing.T) {
	router := newPreferencesRouter(newFakePreferenceStore())

	req := httptest.NewRequest(http.MethodPut, "/api/users/5/preferences/3", strings.NewReader(`{"weight":-0.5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
