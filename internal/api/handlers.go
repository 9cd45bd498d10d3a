package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/anastasiyaperk/Ycrawler/internal/crawler"
)

type statusResponse struct {
	crawler.Stats
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Stats()
	s.respondWithJSON(w, http.StatusOK, statusResponse{
		Stats:  snap,
		Uptime: time.Since(snap.StartedAt).Round(time.Second).String(),
	})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
