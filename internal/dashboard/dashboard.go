// Package dashboard exposes a read-only JSON view of the bot's state
// over HTTP. It is built entirely on snapshot accessors and cannot
// mutate anything.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/service"
)

// Server serves the dashboard endpoints.
type Server struct {
	provider *service.SnapshotProvider
	srv      *http.Server
}

// New creates the dashboard server on the given listen address.
func New(provider *service.SnapshotProvider, listen string) *Server {
	s := &Server{provider: provider}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/teams", s.handleTeams)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/results", s.handleResults)

	s.srv = &http.Server{
		Addr:         listen,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("listen", s.srv.Addr).Msg("Dashboard listening")
	err := s.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type teamView struct {
	Team    string   `json:"team"`
	Name    string   `json:"name"`
	Time    string   `json:"time"`
	Members []string `json:"members"`
	Count   int      `json:"count"`
	Cap     int      `json:"capacity"`
}

func (s *Server) handleTeams(w http.ResponseWriter, _ *http.Request) {
	snap := s.provider.Take()
	out := struct {
		CycleID string           `json:"cycle_id"`
		State   model.CycleState `json:"state"`
		Teams   []teamView       `json:"teams"`
	}{CycleID: snap.CycleID, State: snap.State}

	for _, team := range model.Teams() {
		roster := snap.Rosters[team]
		members := make([]string, 0, len(roster))
		for _, id := range roster {
			members = append(members, snap.Names[id])
		}
		out.Teams = append(out.Teams, teamView{
			Team:    string(team),
			Name:    team.DisplayName(),
			Time:    snap.Times[team],
			Members: members,
			Count:   len(roster),
			Cap:     snap.Capacity,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	snap := s.provider.Take()
	writeJSON(w, struct {
		Players []model.PlayerStats         `json:"players"`
		Totals  map[model.Team]model.Record `json:"totals"`
	}{Players: snap.Stats, Totals: snap.Totals})
}

func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request) {
	snap := s.provider.Take()
	writeJSON(w, struct {
		CycleID string                `json:"cycle_id"`
		Results []model.ResultEntry   `json:"results"`
		Enemies []service.EnemyRecord `json:"enemies"`
	}{CycleID: snap.CycleID, Results: snap.Results, Enemies: snap.Enemies})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode dashboard response")
	}
}
