package server

import "net/http"

type StandingResponse struct {
	Rank     int    `json:"rank"`
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	Score    int    `json:"score"`
}

// handleStandings lists teams by score. Tied teams share a rank.
func handleStandings(scores Scoreboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		standings, err := scores.Standings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := make([]StandingResponse, 0, len(standings))
		for i, st := range standings {
			rank := i + 1
			if i > 0 && st.Score == standings[i-1].Score {
				rank = resp[i-1].Rank
			}
			resp = append(resp, StandingResponse{
				Rank:     rank,
				TeamID:   st.TeamID,
				TeamName: st.TeamName,
				Score:    st.Score,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
