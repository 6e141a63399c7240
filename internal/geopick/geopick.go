// Package geopick defines the core domain types of the game.
package geopick

import (
	"time"

	"github.com/geopick/geopick/internal/geo"
)

// PointOfInterest is a fixed geographic target worth Points when claimed.
// Location never changes after creation, and Claimed only ever moves from
// false to true.
type PointOfInterest struct {
	ID                string
	GameID            string
	Name              string
	Description       string
	Location          geo.Coordinate
	Points            int
	Claimed           bool
	ClaimedByTeamID   string
	ClaimedByPlayerID string
	ClaimedAt         *time.Time
	CreatedAt         time.Time
}

type Team struct {
	ID         string
	GameID     string
	Name       string
	InviteCode string
	ShareURL   string
	Score      int
	Players    []string
	Claims     []TeamClaim
	CreatedAt  time.Time
}

// TeamClaim records a POI a team owns and the points it earned.
type TeamClaim struct {
	POIID     string
	POIName   string
	Points    int
	ClaimedAt time.Time
}

// Standing is one row of the scoreboard.
type Standing struct {
	TeamID   string
	TeamName string
	Score    int
}
