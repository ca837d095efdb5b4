package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"stashHabitAPI/internal/types/contribution"
	"stashHabitAPI/internal/types/goal"
	"stashHabitAPI/middleware"
	"stashHabitAPI/services"
)

type GoalHandler struct {
	goalService *services.GoalService
}

func NewGoalHandler(goalService *services.GoalService) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

func (h *GoalHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req goal.CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	g, err := h.goalService.CreateGoal(ctx, clerkID, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, g)
}

func (h *GoalHandler) GetGoals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	includeArchived := r.URL.Query().Get("include_archived") == "true"

	goals, err := h.goalService.GetGoals(ctx, clerkID, includeArchived)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch goals")
		return
	}

	respondWithJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) GetGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	goalID, err := parseGoalID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid goal ID")
		return
	}

	g, err := h.goalService.GetGoalByID(ctx, clerkID, goalID)
	if err != nil {
		if isNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Goal not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch goal")
		return
	}

	respondWithJSON(w, http.StatusOK, g)
}

func (h *GoalHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	goalID, err := parseGoalID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid goal ID")
		return
	}

	var req goal.UpdateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	g, err := h.goalService.UpdateGoal(ctx, clerkID, goalID, &req)
	if err != nil {
		if isNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Goal not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, g)
}

// DeleteGoal archives by default. ?hard=true removes the goal and its
// contributions permanently.
func (h *GoalHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	goalID, err := parseGoalID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid goal ID")
		return
	}

	if r.URL.Query().Get("hard") == "true" {
		err = h.goalService.DeleteGoal(ctx, clerkID, goalID)
	} else {
		err = h.goalService.ArchiveGoal(ctx, clerkID, goalID)
	}
	if err != nil {
		if isNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Goal not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to delete goal")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Goal deleted"})
}

func (h *GoalHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	goalID, err := parseGoalID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid goal ID")
		return
	}

	progress, err := h.goalService.GetProgress(ctx, clerkID, goalID)
	if err != nil {
		if isNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Goal not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to compute progress")
		return
	}

	respondWithJSON(w, http.StatusOK, progress)
}

func (h *GoalHandler) LogContribution(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	goalID, err := parseGoalID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid goal ID")
		return
	}

	var req contribution.LogContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := h.goalService.LogContribution(ctx, clerkID, goalID, &req)
	if err != nil {
		if isNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Goal not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, c)
}

func (h *GoalHandler) GetContributions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	goalID, err := parseGoalID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid goal ID")
		return
	}

	contribs, err := h.goalService.GetContributions(ctx, clerkID, goalID)
	if err != nil {
		if isNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Goal not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch contributions")
		return
	}

	respondWithJSON(w, http.StatusOK, contribs)
}

func (h *GoalHandler) DeleteContribution(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	goalID, err := parseGoalID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid goal ID")
		return
	}

	contributionID, err := uuid.Parse(mux.Vars(r)["contributionID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid contribution ID")
		return
	}

	if err := h.goalService.DeleteContribution(ctx, clerkID, goalID, contributionID); err != nil {
		if isNotFound(err) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to delete contribution")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Contribution deleted"})
}

func parseGoalID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["goalID"])
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
