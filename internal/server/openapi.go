package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/geopick/geopick/internal/claim"
	"github.com/geopick/geopick/internal/handler/health"
)

type claimInput struct {
	POIID string `path:"poiId"`
	ClaimRequest
}

type idPath struct {
	ID string `path:"id"`
}

type updateTeamInput struct {
	ID string `path:"id"`
	UpdateTeamRequest
}

type codePath struct {
	Code string `path:"code"`
}

type gameQuery struct {
	GameID string `query:"gameId" description:"Only list POIs of this game."`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "GeoPick API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the GeoPick location game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Reports the status of the database and, when configured, Redis.")
	getHealthz.AddRespStructure(map[string]health.Result{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]health.Result{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws")
	getWS.SetSummary("Game events")
	getWS.SetDescription("Upgrades to a WebSocket that relays join, leave, loadMap, loadGame, gameOver and PoiClaimed messages.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// POST /api/poi/claim/{poiId}
	postClaim, _ := r.NewOperationContext(http.MethodPost, "/api/poi/claim/{poiId}")
	postClaim.SetSummary("Claim a POI")
	postClaim.SetDescription("Claims the POI for the first known team when the player stands within the claim radius. " +
		"Refusals (too far, already claimed) answer 300 with a message.")
	postClaim.AddReqStructure(claimInput{})
	postClaim.AddRespStructure(claim.Message{}, openapi.WithHTTPStatus(http.StatusOK))
	postClaim.AddRespStructure(claim.Message{}, openapi.WithHTTPStatus(claim.StatusRejected))
	postClaim.AddRespStructure(claim.Message{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postClaim.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postClaim.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postClaim)

	// POST /api/poi
	postPOI, _ := r.NewOperationContext(http.MethodPost, "/api/poi")
	postPOI.SetSummary("Create POI")
	postPOI.AddReqStructure(CreatePOIRequest{})
	postPOI.AddRespStructure(POIResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postPOI.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postPOI)

	// GET /api/poi
	listPOIs, _ := r.NewOperationContext(http.MethodGet, "/api/poi")
	listPOIs.SetSummary("List POIs")
	listPOIs.AddReqStructure(gameQuery{})
	listPOIs.AddRespStructure([]POIResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listPOIs)

	// GET /api/poi/{id}
	getPOI, _ := r.NewOperationContext(http.MethodGet, "/api/poi/{id}")
	getPOI.SetSummary("Get POI")
	getPOI.AddReqStructure(idPath{})
	getPOI.AddRespStructure(POIResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getPOI.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getPOI)

	// POST /api/team
	postTeam, _ := r.NewOperationContext(http.MethodPost, "/api/team")
	postTeam.SetSummary("Create team")
	postTeam.SetDescription("Creates a team with a six character invite code, share link and QR code.")
	postTeam.AddReqStructure(CreateTeamRequest{})
	postTeam.AddRespStructure(TeamResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postTeam)

	// GET /api/team/{id}
	getTeam, _ := r.NewOperationContext(http.MethodGet, "/api/team/{id}")
	getTeam.SetSummary("Get team")
	getTeam.SetDescription("Returns the team with its score and claimed POIs.")
	getTeam.AddReqStructure(idPath{})
	getTeam.AddRespStructure(TeamResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getTeam)

	// PUT /api/team/{id}
	putTeam, _ := r.NewOperationContext(http.MethodPut, "/api/team/{id}")
	putTeam.SetSummary("Update team roster")
	putTeam.SetDescription("Adds a player to or removes one from the team. Players on a roster can only claim for that team.")
	putTeam.AddReqStructure(updateTeamInput{})
	putTeam.AddRespStructure(TeamResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	putTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(putTeam)

	// DELETE /api/team/{id}
	deleteTeam, _ := r.NewOperationContext(http.MethodDelete, "/api/team/{id}")
	deleteTeam.SetSummary("Delete team")
	deleteTeam.SetDescription("Deletes a team and its roster. Blocked once the team has claimed a POI.")
	deleteTeam.AddReqStructure(idPath{})
	deleteTeam.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	deleteTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	deleteTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(deleteTeam)

	// GET /api/team/code/{code}
	getTeamByCode, _ := r.NewOperationContext(http.MethodGet, "/api/team/code/{code}")
	getTeamByCode.SetSummary("Look up team by invite code")
	getTeamByCode.AddReqStructure(codePath{})
	getTeamByCode.AddRespStructure(TeamResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getTeamByCode.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getTeamByCode.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getTeamByCode)

	// GET /api/standings
	getStandings, _ := r.NewOperationContext(http.MethodGet, "/api/standings")
	getStandings.SetSummary("Standings")
	getStandings.AddRespStructure([]StandingResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getStandings)

	// GET /api/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events carrying the same messages as the /ws relay.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
