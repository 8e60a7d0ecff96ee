package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"cinerank/internal/database"
	"cinerank/models"
)

type preferenceStore interface {
	GenreWeights(ctx context.Context, userID int64) (map[int64]float64, error)
	SetGenreWeight(ctx context.Context, userID, genreID int64, weight float64) error
	DeleteGenreWeight(ctx context.Context, userID, genreID int64) error
	Settings(ctx context.Context, userID int64) (models.UserSettings, error)
	SaveSettings(ctx context.Context, s models.UserSettings) error
}

var _ preferenceStore = (*database.PreferencesRepository)(nil)

type genreLister interface {
	ListGenres(ctx context.Context) ([]models.Genre, error)
}

// PreferencesHandler exposes genre weights and user settings CRUD.
type PreferencesHandler struct {
	prefs  preferenceStore
	genres genreLister
}

func NewPreferencesHandler(prefs preferenceStore, genres genreLister) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs, genres: genres}
}

// Register mounts the preference routes.
func (h *PreferencesHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/genres", h.ListGenres).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/settings", h.GetSettings).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/settings", h.PutSettings).Methods(http.MethodPut)
	r.HandleFunc("/api/users/{userID}/preferences", h.GetWeights).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/preferences/{genreID}", h.PutWeight).Methods(http.MethodPut)
	r.HandleFunc("/api/users/{userID}/preferences/{genreID}", h.DeleteWeight).Methods(http.MethodDelete)
}

func (h *PreferencesHandler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.genres.ListGenres(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if genres == nil {
		genres = []models.Genre{}
	}
	writeJSON(w, http.StatusOK, genres)
}

func (h *PreferencesHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	settings, err := h.prefs.Settings(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *PreferencesHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	settings := models.DefaultUserSettings(userID)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	settings.UserID = userID

	if settings.YearFrom > settings.YearTo {
		http.Error(w, "yearFrom must not exceed yearTo", http.StatusBadRequest)
		return
	}

	if err := h.prefs.SaveSettings(r.Context(), settings); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *PreferencesHandler) GetWeights(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	weights, err := h.prefs.GenreWeights(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, weights)
}

func (h *PreferencesHandler) PutWeight(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	genreID, ok := pathID(w, r, "genreID")
	if !ok {
		return
	}

	var body struct {
		Weight float64 `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Weight < 0 {
		http.Error(w, "weight must not be negative", http.StatusBadRequest)
		return
	}

	if err := h.prefs.SetGenreWeight(r.Context(), userID, genreID, body.Weight); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genreId": genreID, "weight": body.Weight})
}

func (h *PreferencesHandler) DeleteWeight(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	genreID, ok := pathID(w, r, "genreID")
	if !ok {
		return
	}

	if err := h.prefs.DeleteGenreWeight(r.Context(), userID, genreID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
