package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"cinerank/models"
	"cinerank/services/recommender"
)

type recommendationService interface {
	Recommendations(ctx context.Context, userID int64, limit int, forceRefresh bool) ([]models.RankedMediaView, error)
	Refresh(ctx context.Context, userID int64) error
	RefreshAll(ctx context.Context, userIDs []int64) error
}

var _ recommendationService = (*recommender.Service)(nil)

type activeUserLister interface {
	ActiveUserIDs(ctx context.Context) ([]int64, error)
}

// RecommendationsHandler exposes the recommendation read and refresh endpoints.
type RecommendationsHandler struct {
	service recommendationService
	users   activeUserLister
}

func NewRecommendationsHandler(service recommendationService, users activeUserLister) *RecommendationsHandler {
	return &RecommendationsHandler{service: service, users: users}
}

// Register mounts the recommendation routes.
func (h *RecommendationsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/users/{userID}/recommendations", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/recommendations/refresh", h.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/recommendations/sweep", h.Sweep).Methods(http.MethodPost)
}

// Get serves the user's ranked list, regenerating when stale or when
// ?refresh=true forces it.
func (h *RecommendationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	force := r.URL.Query().Get("refresh") == "true"

	views, err := h.service.Recommendations(r.Context(), userID, limit, force)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if views == nil {
		views = []models.RankedMediaView{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": views,
		"count":           len(views),
	})
}

// Refresh forces regeneration for one user without serving the result.
func (h *RecommendationsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.service.Refresh(r.Context(), userID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// Sweep regenerates stored sets for every active user.
func (h *RecommendationsHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	userIDs, err := h.users.ActiveUserIDs(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.service.RefreshAll(r.Context(), userIDs); err != nil {
		// Some users may still have refreshed; report the partial outcome.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "partial",
			"users":  len(userIDs),
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"users":  len(userIDs),
	})
}
