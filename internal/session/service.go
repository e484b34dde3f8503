/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/soundbench/soundbench/internal/engine"
	"github.com/soundbench/soundbench/internal/models"
	"github.com/soundbench/soundbench/internal/stats"
	"github.com/soundbench/soundbench/internal/telemetry"
)

// Track indices handed to the engine for an ABX round.
const (
	TrackA = 0
	TrackB = 1
	TrackX = 2
)

// Transport is the engine surface the session service drives.
type Transport interface {
	LoadTracks(bufs []*engine.Buffer) error
	ForceSwitchMode(m engine.SwitchMode)
	UnlockSwitchMode()
	SelectTrack(i int)
	Stop()
}

// Loader decodes a comparison's stimuli.
type Loader interface {
	LoadSet(paths []string) ([]*engine.Buffer, error)
}

// Status is a point-in-time snapshot of the running session.
type Status struct {
	ID         string  `json:"id"`
	Plan       string  `json:"plan"`
	Comparison string  `json:"comparison"`
	Trial      int     `json:"trial"`
	Trials     int     `json:"trials"`
	Correct    int     `json:"correct"`
	Complete   bool    `json:"complete"`
	PValue     float64 `json:"p_value,omitempty"`
}

// active holds the state of the session in progress.
type active struct {
	id         string
	plan       string
	comparison string
	trials     int
	trial      int // zero-based index of the current, unanswered trial
	correct    int
	xIs        string // "a" or "b" for the current trial
	bufA       *engine.Buffer
	bufB       *engine.Buffer
	forcedMode bool
	complete   bool
	pValue     float64
}

// Service manages at most one ABX session at a time.
type Service struct {
	db    *gorm.DB
	media Loader
	eng   Transport
	log   zerolog.Logger

	mu  sync.Mutex
	cur *active
}

// NewService creates a session service.
func NewService(db *gorm.DB, media Loader, eng Transport, logger zerolog.Logger) *Service {
	return &Service{
		db:    db,
		media: media,
		eng:   eng,
		log:   logger.With().Str("component", "session").Logger(),
	}
}

// Start begins a session for one comparison. Any session already in
// progress must be aborted first.
func (s *Service) Start(plan *Plan, comparisonName string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil && !s.cur.complete {
		return Status{}, fmt.Errorf("session %s already in progress", s.cur.id)
	}

	c, err := plan.Comparison(comparisonName)
	if err != nil {
		return Status{}, err
	}

	bufs, err := s.media.LoadSet([]string{c.TrackA, c.TrackB})
	if err != nil {
		return Status{}, err
	}

	a := &active{
		id:         uuid.NewString(),
		plan:       plan.Name,
		comparison: c.Name,
		trials:     c.Trials,
		bufA:       bufs[0],
		bufB:       bufs[1],
	}

	if c.SwitchMode != "" {
		mode, err := engine.ParseSwitchMode(c.SwitchMode)
		if err != nil {
			return Status{}, err
		}
		s.eng.ForceSwitchMode(mode)
		a.forcedMode = true
	}

	if err := s.loadTrialLocked(a); err != nil {
		return Status{}, err
	}

	row := models.Session{
		ID:             a.id,
		PlanName:       a.plan,
		ComparisonName: a.comparison,
		SwitchMode:     c.SwitchMode,
		CreatedAt:      time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return Status{}, fmt.Errorf("create session: %w", err)
	}

	s.cur = a
	telemetry.ActiveSessions.Inc()
	s.log.Info().Str("session_id", a.id).Str("plan", a.plan).
		Str("comparison", a.comparison).Int("trials", a.trials).
		Msg("session started")
	return a.status(), nil
}

// loadTrialLocked draws a fresh X and hands the engine the three tracks.
// X aliases either A's or B's buffer, so it is bit-identical to one of them.
func (s *Service) loadTrialLocked(a *active) error {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Errorf("draw x: %w", err)
	}

	x := a.bufA
	a.xIs = "a"
	if b[0]&1 == 1 {
		x = a.bufB
		a.xIs = "b"
	}

	return s.eng.LoadTracks([]*engine.Buffer{a.bufA, a.bufB, x})
}

// Answer records the listener's verdict for the current trial and advances
// the session, completing it after the final trial.
func (s *Service) Answer(answer string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.cur
	if a == nil || a.complete {
		return Status{}, fmt.Errorf("no session in progress")
	}
	if answer != "a" && answer != "b" {
		return Status{}, fmt.Errorf("answer must be %q or %q", "a", "b")
	}

	correct := answer == a.xIs
	if correct {
		a.correct++
	}

	outcome := "incorrect"
	if correct {
		outcome = "correct"
	}
	telemetry.TrialsTotal.WithLabelValues(outcome).Inc()

	trial := models.Trial{
		SessionID:  a.id,
		Index:      a.trial,
		XIs:        a.xIs,
		Answer:     answer,
		Correct:    correct,
		AnsweredAt: time.Now(),
	}
	if err := s.db.Create(&trial).Error; err != nil {
		return Status{}, fmt.Errorf("record trial: %w", err)
	}

	a.trial++
	if a.trial >= a.trials {
		return s.completeLocked(a)
	}

	if err := s.loadTrialLocked(a); err != nil {
		return Status{}, err
	}
	return a.status(), nil
}

func (s *Service) completeLocked(a *active) (Status, error) {
	a.complete = true
	a.pValue = stats.BinomialTail(a.trials, a.correct)
	s.eng.Stop()
	if a.forcedMode {
		s.eng.UnlockSwitchMode()
	}

	now := time.Now()
	err := s.db.Model(&models.Session{}).Where("id = ?", a.id).Updates(map[string]any{
		"trials":       a.trials,
		"correct":      a.correct,
		"p_value":      a.pValue,
		"completed_at": &now,
	}).Error
	if err != nil {
		return Status{}, fmt.Errorf("complete session: %w", err)
	}

	telemetry.ActiveSessions.Dec()
	s.log.Info().Str("session_id", a.id).
		Int("correct", a.correct).Int("trials", a.trials).
		Float64("p_value", a.pValue).
		Bool("significant", stats.Significant(a.trials, a.correct)).
		Msg("session complete")
	return a.status(), nil
}

// Abort discards the session in progress.
func (s *Service) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.cur
	if a == nil || a.complete {
		return fmt.Errorf("no session in progress")
	}

	s.cur = nil
	s.eng.Stop()
	if a.forcedMode {
		s.eng.UnlockSwitchMode()
	}
	telemetry.ActiveSessions.Dec()
	s.log.Info().Str("session_id", a.id).Int("trial", a.trial).Msg("session aborted")
	return s.db.Delete(&models.Session{}, "id = ?", a.id).Error
}

// Status returns the snapshot of the current session, if any.
func (s *Service) Status() (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return Status{}, false
	}
	return s.cur.status(), true
}

// History returns past sessions, newest first.
func (s *Service) History(limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Session
	err := s.db.Order("created_at desc").Limit(limit).Find(&rows).Error
	return rows, err
}

func (a *active) status() Status {
	st := Status{
		ID:         a.id,
		Plan:       a.plan,
		Comparison: a.comparison,
		Trial:      a.trial,
		Trials:     a.trials,
		Correct:    a.correct,
		Complete:   a.complete,
	}
	if a.complete {
		st.PValue = a.pValue
	}
	return st
}
