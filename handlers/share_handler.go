package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"stashHabitAPI/middleware"
	"stashHabitAPI/services"
)

type ShareHandler struct {
	shareService *services.ShareService
}

func NewShareHandler(shareService *services.ShareService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
	}
}

func (h *ShareHandler) CreateShareLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	goalID, err := uuid.Parse(mux.Vars(r)["goalID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid goal ID")
		return
	}

	link, err := h.shareService.CreateShareLink(ctx, clerkID, goalID)
	if err != nil {
		if isNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Goal not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to create share link")
		return
	}

	respondWithJSON(w, http.StatusCreated, link)
}

// GetSharedGoal is public. The token in the path is the only credential.
func (h *ShareHandler) GetSharedGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token := mux.Vars(r)["token"]
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "Missing share token")
		return
	}

	snapshot, err := h.shareService.ResolveShareLink(ctx, token)
	if err != nil {
		if isNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Shared goal not found")
			return
		}
		respondWithError(w, http.StatusUnauthorized, "Invalid share token")
		return
	}

	respondWithJSON(w, http.StatusOK, snapshot)
}
