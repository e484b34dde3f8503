/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package prefs persists user preferences as key/value settings rows.
package prefs

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soundbench/soundbench/internal/models"
)

const (
	KeyVolume     = "volume"
	KeySwitchMode = "switch_mode"
)

// Store reads and writes settings rows.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewStore creates a preference store backed by db.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: logger.With().Str("component", "prefs").Logger(),
	}
}

// Get returns the value for key, or def when the key is absent.
func (s *Store) Get(key, def string) string {
	var row models.Setting
	if err := s.db.First(&row, "key = ?", key).Error; err != nil {
		return def
	}
	return row.Value
}

// Set upserts a settings row.
func (s *Store) Set(key, value string) error {
	row := models.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// Volume returns the persisted master volume, or def when unset or malformed.
func (s *Store) Volume(def float64) float64 {
	raw := s.Get(KeyVolume, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		s.log.Warn().Str("value", raw).Msg("ignoring malformed persisted volume")
		return def
	}
	return v
}

// setter is the subset of Store the debouncer needs.
type setter interface {
	Set(key, value string) error
}

// DebouncedVolume coalesces rapid volume changes into at most one
// database write per interval, always keeping the most recent value.
type DebouncedVolume struct {
	mu       sync.Mutex
	store    setter
	interval time.Duration
	log      zerolog.Logger

	pending float64
	dirty   bool
	timer   *time.Timer
}

// NewDebouncedVolume creates a debounced volume writer.
func NewDebouncedVolume(store setter, interval time.Duration, logger zerolog.Logger) *DebouncedVolume {
	return &DebouncedVolume{
		store:    store,
		interval: interval,
		log:      logger.With().Str("component", "prefs").Logger(),
	}
}

// Save implements engine.VolumeStore. The write is deferred; a burst of
// calls within the interval produces a single row update with the last value.
func (d *DebouncedVolume) Save(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = v
	d.dirty = true
	if d.timer == nil {
		d.timer = time.AfterFunc(d.interval, d.flush)
	}
}

func (d *DebouncedVolume) flush() {
	d.mu.Lock()
	v := d.pending
	dirty := d.dirty
	d.dirty = false
	d.timer = nil
	d.mu.Unlock()

	if !dirty {
		return
	}
	if err := d.store.Set(KeyVolume, fmt.Sprintf("%.4f", v)); err != nil {
		d.log.Error().Err(err).Msg("persist volume")
	}
}

// Flush writes any pending value immediately.
func (d *DebouncedVolume) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.flush()
}
