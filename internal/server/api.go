/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soundbench/soundbench/internal/engine"
	"github.com/soundbench/soundbench/internal/logbuffer"
	"github.com/soundbench/soundbench/internal/session"
	"github.com/soundbench/soundbench/internal/version"
)

type statusResponse struct {
	State     string  `json:"state"`
	Position  float64 `json:"position"`
	Track     int     `json:"track"`
	Tracks    int     `json:"tracks"`
	LoopStart float64 `json:"loop_start"`
	LoopEnd   float64 `json:"loop_end"`
	Volume    float64 `json:"volume"`
	Mode      string  `json:"mode"`
}

func (s *Server) status() statusResponse {
	state := s.eng.State().String()
	// Optimistic play: the transport reports playing while the output
	// device is still warming up. Surface that distinctly.
	if s.eng.State() == engine.StatePlaying && !s.clock.Running() {
		state = "starting"
	}
	start, end := s.eng.LoopRegion()
	return statusResponse{
		State:     state,
		Position:  s.eng.CurrentTime(),
		Track:     s.eng.SelectedTrack(),
		Tracks:    s.eng.TrackCount(),
		LoopStart: start,
		LoopEnd:   end,
		Volume:    s.eng.Volume(),
		Mode:      s.eng.Mode().String(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if s.updates != nil {
		writeJSON(w, http.StatusOK, s.updates.Info())
		return
	}
	writeJSON(w, http.StatusOK, version.UpdateInfo{CurrentVersion: version.Version})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.eng.Play()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.eng.Pause()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.eng.Stop()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time float64 `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Time < 0 {
		writeError(w, http.StatusBadRequest, "invalid_time")
		return
	}
	s.eng.Seek(req.Time)
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSelectTrack(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_index")
		return
	}
	if idx < 0 || idx >= s.eng.TrackCount() {
		writeError(w, http.StatusNotFound, "track_not_found")
		return
	}
	s.eng.SelectTrack(idx)
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleLoop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	s.eng.SetLoopRegion(req.Start, req.End)

	// The engine silently refuses malformed regions; read back to tell the
	// caller whether the request took effect.
	start, end := s.eng.LoopRegion()
	if start != req.Start || end != req.End {
		writeError(w, http.StatusBadRequest, "invalid_loop")
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Volume < 0 || req.Volume > 1 {
		writeError(w, http.StatusBadRequest, "volume_out_of_range")
		return
	}
	s.eng.SetVolume(req.Volume)
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	mode, err := engine.ParseSwitchMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_mode")
		return
	}
	s.eng.SetSwitchMode(mode)
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": s.plans})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan       string `json:"plan"`
		Comparison string `json:"comparison"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var plan *session.Plan
	for _, p := range s.plans {
		if p.Name == req.Plan {
			plan = p
			break
		}
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "plan_not_found")
		return
	}

	st, err := s.sessions.Start(plan, req.Comparison)
	if err != nil {
		s.log.Warn().Err(err).Str("plan", req.Plan).Msg("session start refused")
		writeError(w, http.StatusConflict, "session_start_failed")
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessions.Status()
	if !ok {
		writeError(w, http.StatusNotFound, "no_session")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSessionAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	st, err := s.sessions.Answer(req.Answer)
	if err != nil {
		writeError(w, http.StatusBadRequest, "answer_rejected")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSessionAbort(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Abort(); err != nil {
		writeError(w, http.StatusNotFound, "no_session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.sessions.History(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": rows})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logBuffer == nil {
		writeError(w, http.StatusNotFound, "log_buffer_disabled")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	var since time.Time
	if raw := q.Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			since = t
		}
	}

	entries := s.logBuffer.Query(logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		SessionID:  q.Get("session_id"),
		Search:     q.Get("search"),
		Since:      since,
		Limit:      limit,
		Descending: true,
	})
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
