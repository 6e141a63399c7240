package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/geopick/geopick/internal/geo"
	"github.com/geopick/geopick/internal/geopick"
)

const (
	DefaultRadiusMeters = 50.0
	DefaultStoreTimeout = 5 * time.Second
)

type Config struct {
	RadiusMeters float64
	StoreTimeout time.Duration
}

// Engine runs the proximity claim protocol. It holds no per-POI state;
// concurrent claims are arbitrated by POIStore.CommitClaim.
type Engine struct {
	pois   POIStore
	teams  TeamDirectory
	ledger Ledger
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(logger *slog.Logger, pois POIStore, teams TeamDirectory, ledger Ledger, cfg Config) *Engine {
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = DefaultRadiusMeters
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	return &Engine{
		pois:   pois,
		teams:  teams,
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RadiusMeters is the maximum distance from which a POI can be claimed.
func (e *Engine) RadiusMeters() float64 { return e.cfg.RadiusMeters }

// Claim attempts to claim req.POIID for one of req.TeamIDs. Business results
// (success, too far, already claimed, not found) are returned as an Outcome;
// the error is reserved for invalid requests and store failures.
func (e *Engine) Claim(ctx context.Context, req Request) (Outcome, error) {
	if err := validate(req); err != nil {
		return Outcome{}, err
	}
	out := Outcome{POIID: req.POIID}

	poi, err := withTimeout(ctx, e.cfg.StoreTimeout, func(ctx context.Context) (geopick.PointOfInterest, error) {
		return e.pois.LoadPOI(ctx, req.POIID)
	})
	if errors.Is(err, ErrNotFound) {
		out.Status = StatusNotFound
		return out, nil
	}
	if err != nil {
		return Outcome{}, storeErr("loading poi", err)
	}
	if poi.Claimed {
		out.Status = StatusAlreadyClaimed
		return out, nil
	}

	dist, err := geo.DistanceMeters(poi.Location, req.Position)
	if err != nil {
		// The position was validated above, so the stored location is bad.
		return Outcome{}, fmt.Errorf("poi %s location: %w", poi.ID, err)
	}
	if dist > e.cfg.RadiusMeters {
		out.Status = StatusTooFar
		out.DistanceMeters = dist
		return out, nil
	}

	teamID, err := e.resolveTeam(ctx, poi, req)
	if err != nil {
		return Outcome{}, err
	}

	_, err = withTimeout(ctx, e.cfg.StoreTimeout, func(ctx context.Context) (geopick.PointOfInterest, error) {
		return e.pois.CommitClaim(ctx, req.POIID, teamID, req.PlayerID, e.now())
	})
	if errors.Is(err, ErrAlreadyClaimed) {
		// Lost the race against a concurrent claim.
		out.Status = StatusAlreadyClaimed
		return out, nil
	}
	if errors.Is(err, ErrNotFound) {
		out.Status = StatusNotFound
		return out, nil
	}
	if err != nil {
		return Outcome{}, storeErr("committing claim", err)
	}

	total, err := withTimeout(ctx, e.cfg.StoreTimeout, func(ctx context.Context) (int, error) {
		return e.ledger.Credit(ctx, teamID, req.POIID, poi.Points)
	})
	if err != nil {
		e.logger.Error("poi claimed but team credit failed",
			"poi_id", req.POIID,
			"team_id", teamID,
			"points", poi.Points,
			"error", err,
		)
		return Outcome{}, storeErr("crediting team", err)
	}

	e.logger.Info("poi claimed",
		"poi_id", req.POIID,
		"team_id", teamID,
		"player_id", req.PlayerID,
		"points", poi.Points,
		"distance_m", dist,
	)

	out.Status = StatusSuccess
	out.TeamID = teamID
	out.PointsAwarded = poi.Points
	out.TeamTotal = total
	return out, nil
}

// resolveTeam picks the team to credit from req.TeamIDs, in request order.
// Blank and unknown ids are skipped. So are teams of another game, when both
// the team and the POI name one, and teams whose roster lacks the player.
// A team that lists the player wins over an earlier team without a roster.
func (e *Engine) resolveTeam(ctx context.Context, poi geopick.PointOfInterest, req Request) (string, error) {
	var open string
	for _, id := range req.TeamIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		team, err := withTimeout(ctx, e.cfg.StoreTimeout, func(ctx context.Context) (TeamRef, error) {
			return e.teams.LookupTeam(ctx, id)
		})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", storeErr("looking up team", err)
		}
		if poi.GameID != "" && team.GameID != "" && team.GameID != poi.GameID {
			continue
		}
		switch {
		case slices.Contains(team.Players, req.PlayerID):
			return team.ID, nil
		case len(team.Players) == 0 && open == "":
			open = team.ID
		}
	}
	if open != "" {
		return open, nil
	}
	return "", &ValidationError{Field: "teamIds", Err: errors.New("no eligible team")}
}

func validate(req Request) error {
	if strings.TrimSpace(req.POIID) == "" {
		return &ValidationError{Field: "poiId", Err: errors.New("required")}
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		return &ValidationError{Field: "playerId", Err: errors.New("required")}
	}
	hasTeam := false
	for _, id := range req.TeamIDs {
		if strings.TrimSpace(id) != "" {
			hasTeam = true
			break
		}
	}
	if !hasTeam {
		return &ValidationError{Field: "teamIds", Err: errors.New("at least one team id required")}
	}
	if err := req.Position.Validate(); err != nil {
		return &ValidationError{Field: "positionPlayer", Err: err}
	}
	return nil
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// storeErr classifies a persistence failure as a timeout or an outage.
func storeErr(op string, err error) error {
	if errors.Is(err, ErrStoreTimeout) || errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreTimeout, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
