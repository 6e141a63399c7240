package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/geopick/geopick/internal/geo"
	"github.com/geopick/geopick/internal/geopick"
	"github.com/geopick/geopick/internal/store"
)

// CreatePOIRequest uses the flat lat/long shape of the map editor.
type CreatePOIRequest struct {
	GameID      string   `json:"gameId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Lat         *float64 `json:"lat"`
	Long        *float64 `json:"long"`
	Points      int      `json:"points"`
}

type POIResponse struct {
	ID                string     `json:"id"`
	GameID            string     `json:"gameId,omitempty"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	Lat               float64    `json:"lat"`
	Long              float64    `json:"long"`
	Points            int        `json:"points"`
	Claimed           bool       `json:"claimed"`
	ClaimedByTeamID   string     `json:"claimedByTeamId,omitempty"`
	ClaimedByPlayerID string     `json:"claimedByPlayerId,omitempty"`
	ClaimedAt         *time.Time `json:"claimedAt,omitempty"`
}

func toPOIResponse(p geopick.PointOfInterest) POIResponse {
	return POIResponse{
		ID:                p.ID,
		GameID:            p.GameID,
		Name:              p.Name,
		Description:       p.Description,
		Lat:               p.Location.Latitude,
		Long:              p.Location.Longitude,
		Points:            p.Points,
		Claimed:           p.Claimed,
		ClaimedByTeamID:   p.ClaimedByTeamID,
		ClaimedByPlayerID: p.ClaimedByPlayerID,
		ClaimedAt:         p.ClaimedAt,
	}
}

func handleCreatePOI(logger *slog.Logger, s Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePOIRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if req.Lat == nil || req.Long == nil {
			writeError(w, http.StatusBadRequest, "lat and long are required")
			return
		}
		if req.Points < 0 {
			writeError(w, http.StatusBadRequest, "points must not be negative")
			return
		}

		p, err := s.CreatePOI(r.Context(), store.NewPOI{
			GameID:      req.GameID,
			Name:        req.Name,
			Description: req.Description,
			Location:    geo.Coordinate{Latitude: *req.Lat, Longitude: *req.Long},
			Points:      req.Points,
		})
		if errors.Is(err, geo.ErrInvalidCoordinate) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			logger.Error("creating poi", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		logger.Info("poi created", "poi_id", p.ID, "name", p.Name, "points", p.Points)
		writeJSON(w, http.StatusCreated, toPOIResponse(p))
	}
}

func handleGetPOI(s Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.LoadPOI(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "poi not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, toPOIResponse(p))
	}
}

func handleListPOIs(s Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pois, err := s.ListPOIs(r.Context(), r.URL.Query().Get("gameId"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		resp := make([]POIResponse, 0, len(pois))
		for _, p := range pois {
			resp = append(resp, toPOIResponse(p))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
