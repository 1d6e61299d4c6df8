package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ESD-II/tracker-website/services"
)

type PointHandler struct {
	pointService services.PointService
}

func NewPointHandler(pointService services.PointService) *PointHandler {
	return &PointHandler{pointService: pointService}
}

// ListPoints returns finalized points available for replay, newest first.
// GET /points?limit=50&offset=0
func (h *PointHandler) ListPoints(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	points, err := h.pointService.ListPoints(r.Context(), limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"points": points}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReplayPoint returns one point with its coordinate trace ordered by
// relative offset. GET /points/{pointID}/replay
func (h *PointHandler) ReplayPoint(w http.ResponseWriter, r *http.Request) {
	pointID, err := strconv.Atoi(chi.URLParam(r, "pointID"))
	if err != nil || pointID <= 0 {
		badRequestResponse(w, r, errors.New("invalid point id"))
		return
	}

	replay, err := h.pointService.GetReplay(r.Context(), pointID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, replay, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return value, nil
}
