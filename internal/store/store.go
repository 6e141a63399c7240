// Package store persists POIs, teams and team scores in libSQL and
// implements the claim package's storage interfaces.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/geopick/geopick/internal/claim"
	"github.com/geopick/geopick/internal/geo"
	"github.com/geopick/geopick/internal/geopick"
)

// ErrNotFound is the same sentinel the claim engine matches on.
var ErrNotFound = claim.ErrNotFound

var ErrDuplicateInviteCode = errors.New("invite code already in use")

var ErrTeamHasClaims = errors.New("team has claimed pois")

const timeLayout = time.RFC3339Nano

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type NewPOI struct {
	GameID      string
	Name        string
	Description string
	Location    geo.Coordinate
	Points      int
}

func (s *Store) CreatePOI(ctx context.Context, in NewPOI) (geopick.PointOfInterest, error) {
	if err := in.Location.Validate(); err != nil {
		return geopick.PointOfInterest{}, err
	}
	now := time.Now().UTC()
	p := geopick.PointOfInterest{
		ID:          uuid.NewString(),
		GameID:      in.GameID,
		Name:        in.Name,
		Description: in.Description,
		Location:    in.Location,
		Points:      in.Points,
		CreatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pois (id, game_id, name, description, latitude, longitude, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.GameID, p.Name, p.Description, p.Location.Latitude, p.Location.Longitude, p.Points, now.Format(timeLayout))
	if err != nil {
		return geopick.PointOfInterest{}, fmt.Errorf("inserting poi: %w", err)
	}
	return p, nil
}

const poiColumns = `id, game_id, name, description, latitude, longitude, points,
	claimed, claimed_by_team_id, claimed_by_player_id, claimed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPOI(row rowScanner) (geopick.PointOfInterest, error) {
	var (
		p                geopick.PointOfInterest
		claimed          int
		teamID, playerID sql.NullString
		claimedAt        sql.NullString
		createdAt        string
	)
	err := row.Scan(&p.ID, &p.GameID, &p.Name, &p.Description,
		&p.Location.Latitude, &p.Location.Longitude, &p.Points,
		&claimed, &teamID, &playerID, &claimedAt, &createdAt)
	if err != nil {
		return p, err
	}
	p.Claimed = claimed != 0
	p.ClaimedByTeamID = teamID.String
	p.ClaimedByPlayerID = playerID.String
	if claimedAt.Valid {
		t, err := time.Parse(timeLayout, claimedAt.String)
		if err != nil {
			return p, fmt.Errorf("parsing claimed_at: %w", err)
		}
		p.ClaimedAt = &t
	}
	if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return p, fmt.Errorf("parsing created_at: %w", err)
	}
	return p, nil
}

// LoadPOI implements claim.POIStore.
func (s *Store) LoadPOI(ctx context.Context, id string) (geopick.PointOfInterest, error) {
	p, err := scanPOI(s.db.QueryRowContext(ctx,
		`SELECT `+poiColumns+` FROM pois WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// CommitClaim implements claim.POIStore. The conditional update is the
// compare-and-set: only the first writer sees a row affected.
func (s *Store) CommitClaim(ctx context.Context, id, teamID, playerID string, at time.Time) (geopick.PointOfInterest, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pois
		SET claimed = 1, claimed_by_team_id = ?, claimed_by_player_id = ?, claimed_at = ?
		WHERE id = ? AND claimed = 0
	`, teamID, playerID, at.UTC().Format(timeLayout), id)
	if err != nil {
		return geopick.PointOfInterest{}, fmt.Errorf("updating poi: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return geopick.PointOfInterest{}, fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		// Either the POI does not exist or somebody else got there first.
		if _, err := s.LoadPOI(ctx, id); err != nil {
			return geopick.PointOfInterest{}, err
		}
		return geopick.PointOfInterest{}, claim.ErrAlreadyClaimed
	}
	return s.LoadPOI(ctx, id)
}

// ListPOIs returns POIs ordered by name, restricted to gameID when set.
func (s *Store) ListPOIs(ctx context.Context, gameID string) ([]geopick.PointOfInterest, error) {
	query := `SELECT ` + poiColumns + ` FROM pois`
	var args []any
	if gameID != "" {
		query += ` WHERE game_id = ?`
		args = append(args, gameID)
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pois := []geopick.PointOfInterest{}
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, err
		}
		pois = append(pois, p)
	}
	return pois, rows.Err()
}

type NewTeam struct {
	GameID     string
	Name       string
	InviteCode string
	ShareURL   string
}

func (s *Store) CreateTeam(ctx context.Context, in NewTeam) (geopick.Team, error) {
	now := time.Now().UTC()
	t := geopick.Team{
		ID:         uuid.NewString(),
		GameID:     in.GameID,
		Name:       in.Name,
		InviteCode: in.InviteCode,
		ShareURL:   in.ShareURL,
		CreatedAt:  now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, game_id, name, invite_code, share_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.GameID, t.Name, t.InviteCode, t.ShareURL, now.Format(timeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return geopick.Team{}, ErrDuplicateInviteCode
		}
		return geopick.Team{}, fmt.Errorf("inserting team: %w", err)
	}
	return t, nil
}

// LookupTeam implements claim.TeamDirectory.
func (s *Store) LookupTeam(ctx context.Context, id string) (claim.TeamRef, error) {
	ref := claim.TeamRef{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT game_id FROM teams WHERE id = ?`, id).Scan(&ref.GameID)
	if errors.Is(err, sql.ErrNoRows) {
		return ref, ErrNotFound
	}
	if err != nil {
		return ref, err
	}
	ref.Players, err = s.players(ctx, id)
	return ref, err
}

func (s *Store) players(ctx context.Context, teamID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id FROM team_players WHERE team_id = ? ORDER BY joined_at, player_id
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		players = append(players, id)
	}
	return players, rows.Err()
}

// AddPlayer puts playerID on the team's roster. Adding a member twice is a no-op.
func (s *Store) AddPlayer(ctx context.Context, teamID, playerID string) error {
	if err := s.teamExists(ctx, teamID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_players (team_id, player_id, joined_at) VALUES (?, ?, ?)
		ON CONFLICT(team_id, player_id) DO NOTHING
	`, teamID, playerID, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("adding player: %w", err)
	}
	return nil
}

// RemovePlayer takes playerID off the roster. Removing a non-member is a no-op.
func (s *Store) RemovePlayer(ctx context.Context, teamID, playerID string) error {
	if err := s.teamExists(ctx, teamID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM team_players WHERE team_id = ? AND player_id = ?`, teamID, playerID)
	if err != nil {
		return fmt.Errorf("removing player: %w", err)
	}
	return nil
}

// DeleteTeam removes a team and its roster. Teams that own claimed POIs
// are kept, since their points are part of the score history.
func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var claims int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pois WHERE claimed_by_team_id = ?`, id).Scan(&claims)
	if err != nil {
		return fmt.Errorf("counting claims: %w", err)
	}
	if claims > 0 {
		return ErrTeamHasClaims
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting team: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) teamExists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// GetTeam returns a team with its claimed POIs in claim order. Claims come
// from the POIs themselves, so they are listed whichever ledger holds the score.
func (s *Store) GetTeam(ctx context.Context, id string) (geopick.Team, error) {
	return s.team(ctx, `WHERE id = ?`, id)
}

// TeamByInviteCode looks a team up by its invite code, case-insensitively.
func (s *Store) TeamByInviteCode(ctx context.Context, code string) (geopick.Team, error) {
	return s.team(ctx, `WHERE invite_code = ?`, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *Store) team(ctx context.Context, where string, arg any) (geopick.Team, error) {
	var (
		t         geopick.Team
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, game_id, name, invite_code, share_url, score, created_at
		FROM teams `+where, arg,
	).Scan(&t.ID, &t.GameID, &t.Name, &t.InviteCode, &t.ShareURL, &t.Score, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return t, fmt.Errorf("parsing team created_at: %w", err)
	}
	if t.Players, err = s.players(ctx, t.ID); err != nil {
		return t, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, points, claimed_at
		FROM pois
		WHERE claimed = 1 AND claimed_by_team_id = ?
		ORDER BY claimed_at, id
	`, t.ID)
	if err != nil {
		return t, err
	}
	defer rows.Close()

	t.Claims = []geopick.TeamClaim{}
	for rows.Next() {
		var (
			c  geopick.TeamClaim
			at string
		)
		if err := rows.Scan(&c.POIID, &c.POIName, &c.Points, &at); err != nil {
			return t, err
		}
		if c.ClaimedAt, err = time.Parse(timeLayout, at); err != nil {
			return t, fmt.Errorf("parsing claimed_at: %w", err)
		}
		t.Claims = append(t.Claims, c)
	}
	return t, rows.Err()
}

// Credit implements claim.Ledger. The credit row and the score increment
// share a transaction; a POI already credited leaves the score untouched.
func (s *Store) Credit(ctx context.Context, teamID, poiID string, points int) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO team_credits (poi_id, team_id, points, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(poi_id) DO NOTHING
	`, poiID, teamID, points, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("recording credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	if n > 0 {
		_, err = tx.ExecContext(ctx, `UPDATE teams SET score = score + ? WHERE id = ?`, points, teamID)
		if err != nil {
			return 0, fmt.Errorf("incrementing score: %w", err)
		}
	}

	var total int
	err = tx.QueryRowContext(ctx, `SELECT score FROM teams WHERE id = ?`, teamID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return total, tx.Commit()
}

// Standings returns all teams ordered by score, highest first.
func (s *Store) Standings(ctx context.Context) ([]geopick.Standing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, score FROM teams ORDER BY score DESC, name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standings := []geopick.Standing{}
	for rows.Next() {
		var st geopick.Standing
		if err := rows.Scan(&st.TeamID, &st.TeamName, &st.Score); err != nil {
			return nil, err
		}
		standings = append(standings, st)
	}
	return standings, rows.Err()
}

// ReconcileScores recomputes every team score from the POIs it has claimed.
// Running it twice gives the same result.
func (s *Store) ReconcileScores(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Claims committed without a matching credit row, e.g. after a crash
	// between the two steps.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_credits (poi_id, team_id, points, created_at)
		SELECT id, claimed_by_team_id, points, claimed_at
		FROM pois
		WHERE claimed = 1 AND claimed_by_team_id IS NOT NULL
		ON CONFLICT(poi_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("backfilling credits: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE teams SET score = COALESCE(
			(SELECT SUM(points) FROM team_credits WHERE team_credits.team_id = teams.id), 0)
	`)
	if err != nil {
		return fmt.Errorf("recomputing scores: %w", err)
	}
	return tx.Commit()
}

// Score returns a team's current total.
func (s *Store) Score(ctx context.Context, teamID string) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx, `SELECT score FROM teams WHERE id = ?`, teamID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return score, err
}

// TeamNames maps every team id to its name.
func (s *Store) TeamNames(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM teams`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// Credit is one claimed POI as a ledger entry.
type Credit struct {
	TeamID string
	POIID  string
	Points int
}

// ClaimedCredits lists every claimed POI with the team that owns it. It is
// the source of truth ledgers are rebuilt from.
func (s *Store) ClaimedCredits(ctx context.Context) ([]Credit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT claimed_by_team_id, id, points
		FROM pois
		WHERE claimed = 1 AND claimed_by_team_id IS NOT NULL
		ORDER BY claimed_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	credits := []Credit{}
	for rows.Next() {
		var c Credit
		if err := rows.Scan(&c.TeamID, &c.POIID, &c.Points); err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}
