package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geopick/geopick/internal/claim"
	"github.com/geopick/geopick/internal/geo"
)

// LatLng is the position shape the map client sends.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type ClaimRequest struct {
	TeamIDs        []string `json:"teamIds"`
	PlayerID       string   `json:"playerId"`
	PositionPlayer *LatLng  `json:"positionPlayer"`
}

// handleClaim answers 200 on success and 300 for expected refusals, with the
// outcome message in the body. Bad input is 400 and store trouble 503.
func handleClaim(logger *slog.Logger, engine *claim.Engine, notifier *claim.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClaimRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.PositionPlayer == nil {
			writeError(w, http.StatusBadRequest, "positionPlayer is required")
			return
		}

		outcome, err := engine.Claim(r.Context(), claim.Request{
			POIID:    chi.URLParam(r, "poiId"),
			PlayerID: req.PlayerID,
			TeamIDs:  req.TeamIDs,
			Position: geo.Coordinate{Latitude: req.PositionPlayer.Lat, Longitude: req.PositionPlayer.Lng},
		})

		var verr *claim.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		case errors.Is(err, claim.ErrStoreTimeout), errors.Is(err, claim.ErrStoreUnavailable):
			logger.Error("claim failed", "poi_id", chi.URLParam(r, "poiId"), "error", err)
			writeError(w, http.StatusServiceUnavailable, "service unavailable, try again")
			return
		case err != nil:
			logger.Error("claim failed", "poi_id", chi.URLParam(r, "poiId"), "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		status, msg := notifier.Notify(r.Context(), outcome)
		writeJSON(w, status, msg)
	}
}
