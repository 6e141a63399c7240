package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/geopick/geopick/internal/geopick"
	"github.com/geopick/geopick/internal/invite"
	"github.com/geopick/geopick/internal/store"
)

// inviteAttempts bounds retries when a fresh code collides with an old one.
const inviteAttempts = 5

type CreateTeamRequest struct {
	GameID string `json:"gameId"`
	Name   string `json:"name"`
}

type TeamClaimResponse struct {
	POIID     string    `json:"poiId"`
	POIName   string    `json:"poiName"`
	Points    int       `json:"points"`
	ClaimedAt time.Time `json:"claimedAt"`
}

type TeamResponse struct {
	ID         string              `json:"id"`
	GameID     string              `json:"gameId,omitempty"`
	Name       string              `json:"name"`
	InviteCode string              `json:"inviteCode"`
	ShareURL   string              `json:"shareUrl"`
	JoinURL    string              `json:"joinUrl"`
	QRCode     string              `json:"qrCode"`
	Score      int                 `json:"score"`
	Players    []string            `json:"players"`
	Claims     []TeamClaimResponse `json:"claims"`
}

// UpdateTeamRequest adds a player to or removes one from the roster.
type UpdateTeamRequest struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
}

const (
	actionAdd    = "add"
	actionRemove = "remove"
)

func toTeamResponse(t geopick.Team, inv invite.Invite) TeamResponse {
	claims := make([]TeamClaimResponse, 0, len(t.Claims))
	for _, c := range t.Claims {
		claims = append(claims, TeamClaimResponse(c))
	}
	players := t.Players
	if players == nil {
		players = []string{}
	}
	return TeamResponse{
		ID:         t.ID,
		GameID:     t.GameID,
		Name:       t.Name,
		InviteCode: t.InviteCode,
		ShareURL:   inv.ShareURL,
		JoinURL:    inv.JoinURL,
		QRCode:     inv.QRDataURL,
		Score:      t.Score,
		Players:    players,
		Claims:     claims,
	}
}

func handleCreateTeam(logger *slog.Logger, s Store, invites *invite.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTeamRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		var (
			team geopick.Team
			inv  invite.Invite
			err  error
		)
		for range inviteAttempts {
			inv, err = invites.New()
			if err != nil {
				break
			}
			team, err = s.CreateTeam(r.Context(), store.NewTeam{
				GameID:     req.GameID,
				Name:       req.Name,
				InviteCode: inv.Code,
				ShareURL:   inv.ShareURL,
			})
			if !errors.Is(err, store.ErrDuplicateInviteCode) {
				break
			}
			logger.Warn("invite code collision, retrying", "code", inv.Code)
		}
		if err != nil {
			logger.Error("creating team", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		logger.Info("team created", "team_id", team.ID, "name", team.Name, "invite_code", team.InviteCode)
		writeJSON(w, http.StatusCreated, toTeamResponse(team, inv))
	}
}

func handleGetTeam(s Store, scores Scoreboard, invites *invite.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := s.GetTeam(r.Context(), chi.URLParam(r, "id"))
		writeTeam(w, r, team, err, scores, invites)
	}
}

func handleTeamByCode(s Store, scores Scoreboard, invites *invite.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "code"))
		if !invite.ValidCode(code) {
			writeError(w, http.StatusBadRequest, "malformed invite code")
			return
		}
		team, err := s.TeamByInviteCode(r.Context(), code)
		writeTeam(w, r, team, err, scores, invites)
	}
}

func handleUpdateTeam(logger *slog.Logger, s Store, scores Scoreboard, invites *invite.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateTeamRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.PlayerID = strings.TrimSpace(req.PlayerID)
		if req.PlayerID == "" {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}

		teamID := chi.URLParam(r, "id")
		var err error
		switch req.Action {
		case actionAdd:
			err = s.AddPlayer(r.Context(), teamID, req.PlayerID)
		case actionRemove:
			err = s.RemovePlayer(r.Context(), teamID, req.PlayerID)
		default:
			writeError(w, http.StatusBadRequest, `action must be "add" or "remove"`)
			return
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Error("updating roster", "team_id", teamID, "action", req.Action, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if err == nil {
			logger.Info("roster updated", "team_id", teamID, "player_id", req.PlayerID, "action", req.Action)
		}

		team, err := s.GetTeam(r.Context(), teamID)
		writeTeam(w, r, team, err, scores, invites)
	}
}

func handleDeleteTeam(logger *slog.Logger, s Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "id")
		err := s.DeleteTeam(r.Context(), teamID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "team not found")
		case errors.Is(err, store.ErrTeamHasClaims):
			writeError(w, http.StatusConflict, "team has claimed pois")
		case err != nil:
			logger.Error("deleting team", "team_id", teamID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		default:
			logger.Info("team deleted", "team_id", teamID)
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// writeTeam renders a looked-up team with its live score and invite links.
func writeTeam(w http.ResponseWriter, r *http.Request, team geopick.Team, err error, scores Scoreboard, invites *invite.Generator) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	team.Score, err = scores.Score(r.Context(), team.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	inv, err := invites.ForCode(team.InviteCode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toTeamResponse(team, inv))
}
