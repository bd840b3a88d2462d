package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"playwarden/entity"
	"playwarden/limits"
	"playwarden/manager"
	"playwarden/metrics"
	"playwarden/query"
	"playwarden/stats"
	"playwarden/tracker"
)

// Server is the localhost JSON API. It binds explicitly to loopback; nothing
// here is meant to be reachable from the network.
type Server struct {
	db        *query.Database
	cache     *manager.GameCache
	sessions  *tracker.SessionManager
	evaluator *limits.Evaluator
	timer     *limits.Timer
	stats     *stats.Aggregator
	logger    zerolog.Logger
	userID    int64

	httpServer *http.Server
}

func NewServer(addr string, db *query.Database, cache *manager.GameCache, sessions *tracker.SessionManager, evaluator *limits.Evaluator, timer *limits.Timer, aggregator *stats.Aggregator, logger zerolog.Logger, userID int64) *Server {
	s := &Server{
		db:        db,
		cache:     cache,
		sessions:  sessions,
		evaluator: evaluator,
		timer:     timer,
		stats:     aggregator,
		logger:    logger.With().Str("component", "web").Logger(),
		userID:    userID,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/games", s.handleGames)
	mux.HandleFunc("/api/games/enable", s.handleGameEnable)
	mux.HandleFunc("/api/games/disable", s.handleGameDisable)
	mux.HandleFunc("/api/games/delete", s.handleGameDelete)
	mux.HandleFunc("/api/limits", s.handleLimits)
	mux.HandleFunc("/api/limits/set", s.handleLimitSet)
	mux.HandleFunc("/api/limits/delete", s.handleLimitDelete)
	mux.HandleFunc("/api/limit_status", s.handleLimitStatus)
	mux.HandleFunc("/api/timer", s.handleTimer)
	mux.HandleFunc("/api/active", s.handleActive)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/histogram", s.handleHistogram)
	mux.HandleFunc("/api/preferences", s.handlePreferences)
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start serves in the background; startup failure is logged, not fatal, the
// tracking engine does not depend on the API being up.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("api listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("api server stopped")
		}
	}()
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.db.AllGames()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, games)
}

func (s *Server) handleGameEnable(w http.ResponseWriter, r *http.Request) {
	s.setGameEnabled(w, r, true)
}

func (s *Server) handleGameDisable(w http.ResponseWriter, r *http.Request) {
	s.setGameEnabled(w, r, false)
}

func (s *Server) setGameEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type req struct {
		ID int64 `json:"id"`
	}
	var body req
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.db.SetGameEnabled(body.ID, enabled); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.cache.Refresh(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGameDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type req struct {
		ID int64 `json:"id"`
	}
	var body req
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.db.DeleteGame(body.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.cache.Refresh(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	limitList, err := s.db.LimitsForUser(s.userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, limitList)
}

func (s *Server) handleLimitSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type req struct {
		Day          string `json:"day"`
		LimitSeconds int64  `json:"limitSeconds"`
	}
	var body req
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	day, ok := entity.ParseWeekday(strings.TrimSpace(body.Day))
	if !ok {
		http.Error(w, "bad day", http.StatusBadRequest)
		return
	}
	if body.LimitSeconds < 0 {
		http.Error(w, "negative limit", http.StatusBadRequest)
		return
	}
	if err := s.db.UpsertLimit(s.userID, day, body.LimitSeconds); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// The countdown must reflect the new allowance right away.
	s.timer.ForceUpdate()
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleLimitDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type req struct {
		Day string `json:"day"`
	}
	var body req
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	day, ok := entity.ParseWeekday(strings.TrimSpace(body.Day))
	if !ok {
		http.Error(w, "bad day", http.StatusBadRequest)
		return
	}
	if err := s.db.DeleteLimit(s.userID, day); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.timer.ForceUpdate()
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleLimitStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.evaluator.Status(s.userID, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, status)
}

func (s *Server) handleTimer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.timer.State())
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	type active struct {
		SessionID       int64     `json:"sessionId"`
		GameID          int64     `json:"gameId"`
		GameName        string    `json:"gameName"`
		StartTime       time.Time `json:"startTime"`
		DurationSeconds int64     `json:"durationSeconds"`
	}
	sessions := s.sessions.ActiveSessions()
	out := make([]active, 0, len(sessions))
	for _, as := range sessions {
		out = append(out, active{
			SessionID:       as.SessionID,
			GameID:          as.GameID,
			GameName:        as.GameName,
			StartTime:       as.StartTime,
			DurationSeconds: as.DurationSeconds,
		})
	}
	resp := map[string]any{"sessions": out}
	if current, ok := s.sessions.CurrentlyPlaying(); ok {
		resp["currentGameId"] = current.GameID
		resp["currentGameName"] = current.GameName
	}
	writeJSON(w, resp)
}

// statsRange resolves the window from either explicit start/end query params
// (YYYY-MM-DD) or a named period, defaulting to the current week.
func (s *Server) statsRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := strings.TrimSpace(r.URL.Query().Get("start"))
	endStr := strings.TrimSpace(r.URL.Query().Get("end"))
	if startStr != "" && endStr != "" {
		start, err := time.ParseInLocation("2006-01-02", startStr, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := time.ParseInLocation("2006-01-02", endStr, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		// end is inclusive in the query string
		return start, end.Add(24 * time.Hour), nil
	}
	period := strings.TrimSpace(r.URL.Query().Get("period"))
	if period == "" {
		period = stats.PeriodWeek
	}
	return s.stats.PeriodRange(s.userID, period, time.Now())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.statsRange(r)
	if err != nil {
		http.Error(w, "bad range", http.StatusBadRequest)
		return
	}
	items, err := s.stats.Stats(s.userID, start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"start": start.Format("2006-01-02"),
		"end":   end.Add(-24 * time.Hour).Format("2006-01-02"),
		"items": items,
	})
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.statsRange(r)
	if err != nil {
		http.Error(w, "bad range", http.StatusBadRequest)
		return
	}
	by := stats.Granularity(strings.TrimSpace(r.URL.Query().Get("by")))
	if by == "" {
		by = stats.ByDay
	}
	hist, err := s.stats.Histogram(s.userID, start, end, by)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, hist)
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		prefs, err := s.db.PreferencesForUser(s.userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, prefs)
	case http.MethodPost:
		var prefs entity.Preferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prefs.UserID = s.userID
		if err := s.db.UpdatePreferences(prefs); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
