package claim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/geopick/geopick/internal/geo"
	"github.com/geopick/geopick/internal/geopick"
)

// memStore is an in-memory POIStore, TeamDirectory and Ledger. teams holds
// scores, refs the directory entries.
type memStore struct {
	mu       sync.Mutex
	pois     map[string]geopick.PointOfInterest
	teams    map[string]int
	refs     map[string]TeamRef
	credited map[string]bool
	commits  int
}

func newMemStore() *memStore {
	return &memStore{
		pois:     make(map[string]geopick.PointOfInterest),
		teams:    make(map[string]int),
		refs:     make(map[string]TeamRef),
		credited: make(map[string]bool),
	}
}

func (m *memStore) LoadPOI(_ context.Context, id string) (geopick.PointOfInterest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pois[id]
	if !ok {
		return geopick.PointOfInterest{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) CommitClaim(_ context.Context, id, teamID, playerID string, at time.Time) (geopick.PointOfInterest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pois[id]
	if !ok {
		return geopick.PointOfInterest{}, ErrNotFound
	}
	if p.Claimed {
		return geopick.PointOfInterest{}, ErrAlreadyClaimed
	}
	p.Claimed = true
	p.ClaimedByTeamID = teamID
	p.ClaimedByPlayerID = playerID
	p.ClaimedAt = &at
	m.pois[id] = p
	m.commits++
	return p, nil
}

func (m *memStore) LookupTeam(_ context.Context, id string) (TeamRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.refs[id]
	if !ok {
		return TeamRef{}, ErrNotFound
	}
	return ref, nil
}

func (m *memStore) addTeam(ref TeamRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[ref.ID] = ref
	m.teams[ref.ID] = 0
}

func (m *memStore) Credit(_ context.Context, teamID, poiID string, points int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.credited[poiID] {
		m.credited[poiID] = true
		m.teams[teamID] += points
	}
	return m.teams[teamID], nil
}

func (m *memStore) score(teamID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teams[teamID]
}

func (m *memStore) poi(id string) geopick.PointOfInterest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pois[id]
}

var berlin = geo.Coordinate{Latitude: 52.5200, Longitude: 13.4050}

func setupEngine(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	m := newMemStore()
	m.pois["alex"] = geopick.PointOfInterest{
		ID:       "alex",
		Name:     "Alexanderplatz",
		Location: berlin,
		Points:   100,
	}
	m.addTeam(TeamRef{ID: "red"})
	m.addTeam(TeamRef{ID: "blue"})

	e := NewEngine(slog.Default(), m, m, m, Config{RadiusMeters: 50, StoreTimeout: time.Second})
	return e, m
}

func TestClaimBerlinScenario(t *testing.T) {
	e, m := setupEngine(t)
	ctx := context.Background()

	// ~65 m away.
	out, err := e.Claim(ctx, Request{
		POIID:    "alex",
		PlayerID: "p1",
		TeamIDs:  []string{"red"},
		Position: geo.Coordinate{Latitude: 52.5205, Longitude: 13.4055},
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if out.Status != StatusTooFar {
		t.Fatalf("status = %v, want too_far", out.Status)
	}
	if out.DistanceMeters < 60 || out.DistanceMeters > 70 {
		t.Errorf("distance = %.1f, want about 65", out.DistanceMeters)
	}
	if m.poi("alex").Claimed {
		t.Fatal("too far claim mutated the poi")
	}
	if got := m.score("red"); got != 0 {
		t.Errorf("score after too far = %d, want 0", got)
	}

	// ~36 m away.
	near := geo.Coordinate{Latitude: 52.5203, Longitude: 13.4052}
	out, err = e.Claim(ctx, Request{POIID: "alex", PlayerID: "p1", TeamIDs: []string{"red"}, Position: near})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if out.Status != StatusSuccess {
		t.Fatalf("status = %v, want success", out.Status)
	}
	if out.TeamID != "red" || out.PointsAwarded != 100 || out.TeamTotal != 100 {
		t.Errorf("outcome = %+v, want red/100/100", out)
	}
	p := m.poi("alex")
	if !p.Claimed || p.ClaimedByTeamID != "red" || p.ClaimedByPlayerID != "p1" || p.ClaimedAt == nil {
		t.Errorf("poi after claim = %+v", p)
	}

	// Same position again.
	out, err = e.Claim(ctx, Request{POIID: "alex", PlayerID: "p2", TeamIDs: []string{"blue"}, Position: near})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if out.Status != StatusAlreadyClaimed {
		t.Fatalf("status = %v, want already_claimed", out.Status)
	}
	if got := m.score("red"); got != 100 {
		t.Errorf("red score = %d, want 100", got)
	}
	if got := m.score("blue"); got != 0 {
		t.Errorf("blue score = %d, want 0", got)
	}
}

func TestClaimAtExactRadius(t *testing.T) {
	e, _ := setupEngine(t)

	// Same point: distance 0 is always within the radius.
	out, err := e.Claim(context.Background(), Request{
		POIID: "alex", PlayerID: "p1", TeamIDs: []string{"red"}, Position: berlin,
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if out.Status != StatusSuccess {
		t.Fatalf("status = %v, want success", out.Status)
	}
}

func TestClaimNotFound(t *testing.T) {
	e, m := setupEngine(t)

	out, err := e.Claim(context.Background(), Request{
		POIID: "nope", PlayerID: "p1", TeamIDs: []string{"red"}, Position: berlin,
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if out.Status != StatusNotFound {
		t.Fatalf("status = %v, want not_found", out.Status)
	}
	if m.commits != 0 || m.score("red") != 0 {
		t.Error("not found claim had side effects")
	}
}

func TestClaimTeamResolution(t *testing.T) {
	tests := []struct {
		name     string
		teamIDs  []string
		wantTeam string
		wantErr  bool
	}{
		{name: "first of two known", teamIDs: []string{"blue", "red"}, wantTeam: "blue"},
		{name: "order decides", teamIDs: []string{"red", "blue"}, wantTeam: "red"},
		{name: "unknown skipped", teamIDs: []string{"ghost", "red", "blue"}, wantTeam: "red"},
		{name: "blank skipped", teamIDs: []string{" ", " blue "}, wantTeam: "blue"},
		{name: "none known", teamIDs: []string{"ghost", "phantom"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, m := setupEngine(t)
			out, err := e.Claim(context.Background(), Request{
				POIID: "alex", PlayerID: "p1", TeamIDs: tt.teamIDs, Position: berlin,
			})
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("error = %v, want ValidationError", err)
				}
				if m.poi("alex").Claimed {
					t.Error("poi claimed despite unresolvable team")
				}
				return
			}
			if err != nil {
				t.Fatalf("claim: %v", err)
			}
			if out.TeamID != tt.wantTeam {
				t.Errorf("credited team = %q, want %q", out.TeamID, tt.wantTeam)
			}
			if got := m.score(tt.wantTeam); got != 100 {
				t.Errorf("score = %d, want 100", got)
			}
		})
	}
}

func TestClaimTeamEligibility(t *testing.T) {
	tests := []struct {
		name     string
		teamIDs  []string
		wantTeam string
	}{
		{name: "other game skipped", teamIDs: []string{"potsdam", "berlin-open"}, wantTeam: "berlin-open"},
		{name: "only other game", teamIDs: []string{"potsdam"}},
		{name: "member preferred over open team", teamIDs: []string{"berlin-open", "berlin-p1"}, wantTeam: "berlin-p1"},
		{name: "open team when player is on no roster", teamIDs: []string{"berlin-p9", "berlin-open"}, wantTeam: "berlin-open"},
		{name: "only foreign roster", teamIDs: []string{"berlin-p9"}},
		{name: "team without game", teamIDs: []string{"floating"}, wantTeam: "floating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemStore()
			m.pois["alex"] = geopick.PointOfInterest{ID: "alex", GameID: "berlin", Location: berlin, Points: 100}
			m.addTeam(TeamRef{ID: "potsdam", GameID: "potsdam"})
			m.addTeam(TeamRef{ID: "berlin-open", GameID: "berlin"})
			m.addTeam(TeamRef{ID: "berlin-p1", GameID: "berlin", Players: []string{"p0", "p1"}})
			m.addTeam(TeamRef{ID: "berlin-p9", GameID: "berlin", Players: []string{"p9"}})
			m.addTeam(TeamRef{ID: "floating"})
			e := NewEngine(slog.Default(), m, m, m, Config{RadiusMeters: 50})

			out, err := e.Claim(context.Background(), Request{
				POIID: "alex", PlayerID: "p1", TeamIDs: tt.teamIDs, Position: berlin,
			})
			if tt.wantTeam == "" {
				var verr *ValidationError
				if !errors.As(err, &verr) || verr.Field != "teamIds" {
					t.Fatalf("error = %v, want teamIds ValidationError", err)
				}
				if m.commits != 0 {
					t.Error("ineligible team committed a claim")
				}
				return
			}
			if err != nil {
				t.Fatalf("claim: %v", err)
			}
			if out.TeamID != tt.wantTeam {
				t.Errorf("credited team = %q, want %q", out.TeamID, tt.wantTeam)
			}
		})
	}
}

func TestClaimValidation(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantField string
		wantGeo   bool
	}{
		{
			name:      "missing poi",
			req:       Request{PlayerID: "p1", TeamIDs: []string{"red"}, Position: berlin},
			wantField: "poiId",
		},
		{
			name:      "missing player",
			req:       Request{POIID: "alex", TeamIDs: []string{"red"}, Position: berlin},
			wantField: "playerId",
		},
		{
			name:      "no teams",
			req:       Request{POIID: "alex", PlayerID: "p1", Position: berlin},
			wantField: "teamIds",
		},
		{
			name:      "latitude out of range",
			req:       Request{POIID: "alex", PlayerID: "p1", TeamIDs: []string{"red"}, Position: geo.Coordinate{Latitude: 95, Longitude: 13}},
			wantField: "positionPlayer",
			wantGeo:   true,
		},
		{
			name:      "longitude out of range",
			req:       Request{POIID: "alex", PlayerID: "p1", TeamIDs: []string{"red"}, Position: geo.Coordinate{Latitude: 52, Longitude: -200}},
			wantField: "positionPlayer",
			wantGeo:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, m := setupEngine(t)
			_, err := e.Claim(context.Background(), tt.req)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
			if tt.wantGeo && !errors.Is(err, geo.ErrInvalidCoordinate) {
				t.Errorf("error = %v, want ErrInvalidCoordinate", err)
			}
			if m.commits != 0 {
				t.Error("invalid request committed a claim")
			}
		})
	}
}

func TestClaimConcurrent(t *testing.T) {
	e, m := setupEngine(t)
	const n = 32

	var wg sync.WaitGroup
	results := make(chan Outcome, n)
	for i := range n {
		team := "red"
		if i%2 == 1 {
			team = "blue"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Claim(context.Background(), Request{
				POIID: "alex", PlayerID: "p", TeamIDs: []string{team}, Position: berlin,
			})
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			results <- out
		}()
	}
	wg.Wait()
	close(results)

	var success, already int
	for out := range results {
		switch out.Status {
		case StatusSuccess:
			success++
		case StatusAlreadyClaimed:
			already++
		default:
			t.Errorf("unexpected status %v", out.Status)
		}
	}
	if success != 1 || already != n-1 {
		t.Errorf("success = %d, already claimed = %d, want 1 and %d", success, already, n-1)
	}
	if total := m.score("red") + m.score("blue"); total != 100 {
		t.Errorf("total credited = %d, want 100", total)
	}
}

// racingStore reports the POI as unclaimed on load but loses the commit,
// as if another request committed in between.
type racingStore struct{ *memStore }

func (r racingStore) CommitClaim(context.Context, string, string, string, time.Time) (geopick.PointOfInterest, error) {
	return geopick.PointOfInterest{}, ErrAlreadyClaimed
}

func TestClaimLostRace(t *testing.T) {
	_, m := setupEngine(t)
	e := NewEngine(slog.Default(), racingStore{m}, m, m, Config{RadiusMeters: 50})

	out, err := e.Claim(context.Background(), Request{
		POIID: "alex", PlayerID: "p1", TeamIDs: []string{"red"}, Position: berlin,
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if out.Status != StatusAlreadyClaimed {
		t.Fatalf("status = %v, want already_claimed", out.Status)
	}
	if m.score("red") != 0 {
		t.Error("lost race still credited the team")
	}
}

// slowStore blocks every load until the context gives up.
type slowStore struct{ *memStore }

func (s slowStore) LoadPOI(ctx context.Context, _ string) (geopick.PointOfInterest, error) {
	<-ctx.Done()
	return geopick.PointOfInterest{}, ctx.Err()
}

type brokenStore struct{ *memStore }

func (b brokenStore) LoadPOI(context.Context, string) (geopick.PointOfInterest, error) {
	return geopick.PointOfInterest{}, errors.New("disk on fire")
}

func TestClaimStoreFailures(t *testing.T) {
	_, m := setupEngine(t)
	req := Request{POIID: "alex", PlayerID: "p1", TeamIDs: []string{"red"}, Position: berlin}

	e := NewEngine(slog.Default(), slowStore{m}, m, m, Config{RadiusMeters: 50, StoreTimeout: 10 * time.Millisecond})
	_, err := e.Claim(context.Background(), req)
	if !errors.Is(err, ErrStoreTimeout) {
		t.Errorf("slow store error = %v, want ErrStoreTimeout", err)
	}
	if errors.Is(err, ErrAlreadyClaimed) {
		t.Error("timeout reported as already claimed")
	}

	e = NewEngine(slog.Default(), brokenStore{m}, m, m, Config{RadiusMeters: 50})
	_, err = e.Claim(context.Background(), req)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("broken store error = %v, want ErrStoreUnavailable", err)
	}
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(slog.Default(), nil, nil, nil, Config{})
	if e.RadiusMeters() != DefaultRadiusMeters {
		t.Errorf("radius = %v, want %v", e.RadiusMeters(), DefaultRadiusMeters)
	}
	if e.cfg.StoreTimeout != DefaultStoreTimeout {
		t.Errorf("timeout = %v, want %v", e.cfg.StoreTimeout, DefaultStoreTimeout)
	}
}
