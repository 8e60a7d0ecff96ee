package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"cinerank/internal/database"
	"cinerank/models"
)

type activityStore interface {
	WatchHistory(ctx context.Context, userID int64) ([]models.WatchedItem, error)
	RecordWatch(ctx context.Context, userID, mediaID int64, rating *int) error
	RemoveWatch(ctx context.Context, userID, mediaID int64) error
	Favorites(ctx context.Context, userID int64) (models.FavoriteSet, error)
	AddFavorite(ctx context.Context, userID, itemID int64, itemType string) error
	RemoveFavorite(ctx context.Context, userID, itemID int64, itemType string) error
}

var _ activityStore = (*database.ActivityRepository)(nil)

// ActivityHandler exposes watch history and favorites CRUD.
type ActivityHandler struct {
	activity activityStore
}

func NewActivityHandler(activity activityStore) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// Register mounts the history and favorites routes.
func (h *ActivityHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/users/{userID}/history", h.GetHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/history", h.PostWatch).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{userID}/history/{mediaID}", h.DeleteWatch).Methods(http.MethodDelete)
	r.HandleFunc("/api/users/{userID}/favorites", h.GetFavorites).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/favorites", h.PostFavorite).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{userID}/favorites/{itemType}/{itemID}", h.DeleteFavorite).Methods(http.MethodDelete)
}

func (h *ActivityHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	items, err := h.activity.WatchHistory(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []models.WatchedItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// PostWatch records a watch. Rewatching updates the existing row.
func (h *ActivityHandler) PostWatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var body struct {
		MediaID int64 `json:"mediaId"`
		Rating  *int  `json:"rating,omitempty"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.MediaID <= 0 {
		http.Error(w, "mediaId required", http.StatusBadRequest)
		return
	}
	if body.Rating != nil && (*body.Rating < 1 || *body.Rating > 10) {
		http.Error(w, "rating must be between 1 and 10", http.StatusBadRequest)
		return
	}

	if err := h.activity.RecordWatch(r.Context(), userID, body.MediaID, body.Rating); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"mediaId": body.MediaID})
}

func (h *ActivityHandler) DeleteWatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	mediaID, ok := pathID(w, r, "mediaID")
	if !ok {
		return
	}

	if err := h.activity.RemoveWatch(r.Context(), userID, mediaID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ActivityHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	set, err := h.activity.Favorites(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *ActivityHandler) PostFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var body struct {
		ItemID   int64  `json:"itemId"`
		ItemType string `json:"itemType"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.ItemID <= 0 {
		http.Error(w, "itemId required", http.StatusBadRequest)
		return
	}

	if err := h.activity.AddFavorite(r.Context(), userID, body.ItemID, body.ItemType); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"itemId": body.ItemID, "itemType": body.ItemType})
}

func (h *ActivityHandler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	itemType := mux.Vars(r)["itemType"]

	if err := h.activity.RemoveFavorite(r.Context(), userID, itemID, itemType); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
