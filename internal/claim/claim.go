// Package claim decides whether a player standing somewhere may claim a
// point of interest for their team, and reports the result.
package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geopick/geopick/internal/geo"
	"github.com/geopick/geopick/internal/geopick"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyClaimed = errors.New("poi already claimed")

	// ErrStoreTimeout and ErrStoreUnavailable wrap persistence failures.
	// Callers decide whether to retry; the engine never does.
	ErrStoreTimeout     = errors.New("store timeout")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError is returned for malformed claim requests.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// POIStore loads POIs and performs the claimed=false -> true transition.
type POIStore interface {
	LoadPOI(ctx context.Context, id string) (geopick.PointOfInterest, error)
	// CommitClaim must succeed only if the POI is still unclaimed at commit
	// time and return ErrAlreadyClaimed otherwise.
	CommitClaim(ctx context.Context, id, teamID, playerID string, at time.Time) (geopick.PointOfInterest, error)
}

// TeamRef is what the engine needs to know about a candidate team.
// An empty Players list means the team has no roster yet.
type TeamRef struct {
	ID      string
	GameID  string
	Players []string
}

// TeamDirectory looks up candidate teams. Unknown ids give ErrNotFound.
type TeamDirectory interface {
	LookupTeam(ctx context.Context, id string) (TeamRef, error)
}

// Ledger keeps running team scores. Credit must be an atomic increment and
// must not credit the same POI twice.
type Ledger interface {
	Credit(ctx context.Context, teamID, poiID string, points int) (total int, err error)
}

// Request is a player's attempt to claim a POI from a reported position.
type Request struct {
	POIID    string
	PlayerID string
	TeamIDs  []string
	Position geo.Coordinate
}

type Status int

const (
	StatusSuccess Status = iota + 1
	StatusTooFar
	StatusAlreadyClaimed
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTooFar:
		return "too_far"
	case StatusAlreadyClaimed:
		return "already_claimed"
	case StatusNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the business result of a claim. Only the fields relevant to
// Status are set.
type Outcome struct {
	Status         Status
	POIID          string
	TeamID         string
	PointsAwarded  int
	TeamTotal      int
	DistanceMeters float64
}

// Event is handed to a Broadcaster after a successful claim.
type Event struct {
	Type   string `json:"type"`
	POIID  string `json:"poiId,omitempty"`
	TeamID string `json:"teamId,omitempty"`
}

const EventPOIClaimed = "PoiClaimed"

// Broadcaster delivers events to connected clients, fire-and-forget.
type Broadcaster interface {
	Publish(ctx context.Context, e Event) error
}
