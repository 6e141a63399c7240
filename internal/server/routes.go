package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/geopick/geopick/internal/claim"
	"github.com/geopick/geopick/internal/geopick"
	"github.com/geopick/geopick/internal/invite"
	"github.com/geopick/geopick/internal/store"
)

// Store is the persistence the HTTP handlers need beyond claiming.
type Store interface {
	CreatePOI(ctx context.Context, in store.NewPOI) (geopick.PointOfInterest, error)
	LoadPOI(ctx context.Context, id string) (geopick.PointOfInterest, error)
	ListPOIs(ctx context.Context, gameID string) ([]geopick.PointOfInterest, error)
	CreateTeam(ctx context.Context, in store.NewTeam) (geopick.Team, error)
	GetTeam(ctx context.Context, id string) (geopick.Team, error)
	TeamByInviteCode(ctx context.Context, code string) (geopick.Team, error)
	AddPlayer(ctx context.Context, teamID, playerID string) error
	RemovePlayer(ctx context.Context, teamID, playerID string) error
	DeleteTeam(ctx context.Context, id string) error
}

// Scoreboard reads team totals from whichever ledger credits claims.
type Scoreboard interface {
	Score(ctx context.Context, teamID string) (int, error)
	Standings(ctx context.Context) ([]geopick.Standing, error)
}

type Deps struct {
	Store    Store
	Scores   Scoreboard
	Claims   *claim.Engine
	Notifier *claim.Notifier
	Invites  *invite.Generator
	Events   EventSource

	// Mount attaches extra handlers such as /healthz and /ws.
	Mount  func(r chi.Router)
	SPADir string
}

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("GeoPick API", "/openapi.json", "/docs"))

	if deps.Mount != nil {
		deps.Mount(r)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/poi/claim/{poiId}", handleClaim(logger, deps.Claims, deps.Notifier))
		r.Post("/poi", handleCreatePOI(logger, deps.Store))
		r.Get("/poi", handleListPOIs(deps.Store))
		r.Get("/poi/{id}", handleGetPOI(deps.Store))

		r.Post("/team", handleCreateTeam(logger, deps.Store, deps.Invites))
		r.Get("/team/{id}", handleGetTeam(deps.Store, deps.Scores, deps.Invites))
		r.Put("/team/{id}", handleUpdateTeam(logger, deps.Store, deps.Scores, deps.Invites))
		r.Delete("/team/{id}", handleDeleteTeam(logger, deps.Store))
		r.Get("/team/code/{code}", handleTeamByCode(deps.Store, deps.Scores, deps.Invites))

		r.Get("/standings", handleStandings(deps.Scores))

		if deps.Events != nil {
			r.Get("/events", handleEvents(deps.Events))
		}
	})

	if deps.SPADir != "" {
		if info, err := os.Stat(deps.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", deps.SPADir)
			r.NotFound(handleSPA(deps.SPADir))
		}
	}
}
