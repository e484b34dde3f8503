/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the persisted database schema.
package models

import "time"

// Session is one ABX listening run against a plan comparison.
type Session struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	PlanName       string `gorm:"index"`
	ComparisonName string `gorm:"index"`
	SwitchMode     string `gorm:"type:varchar(16)"`
	Trials         int
	Correct        int
	PValue         float64
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Trial is one answered round within a session.
type Trial struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"type:uuid;index"`
	Index      int
	XIs        string `gorm:"type:varchar(1)"` // "a" or "b", hidden until reveal
	Answer     string `gorm:"type:varchar(1)"`
	Correct    bool
	AnsweredAt time.Time
}

// Setting is a key/value preference row.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
