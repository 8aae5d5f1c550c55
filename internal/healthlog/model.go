// Package healthlog stores one self-reported health entry per user per day.
package healthlog

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

var (
	ErrDateRequired  = errors.New("healthlog: date is required")
	ErrInvalidDate   = errors.New("healthlog: invalid date format")
	ErrRangeInverted = errors.New("healthlog: start date is after end date")
)

// Entry is a daily log. Symptom and Note hold redacted text.
type Entry struct {
	UserHash       string    `json:"-"`
	Date           string    `json:"date"`
	TookMedication bool      `json:"tookMedication"`
	SleepHours     float64   `json:"sleepHours"`
	VitalBPM       int       `json:"vital_bpm"`
	Mood           int       `json:"mood"`
	Symptom        string    `json:"symptom"`
	Note           string    `json:"note"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Repository persists entries keyed by (user hash, date).
type Repository interface {
	// Upsert creates or replaces the entry for its user and date.
	Upsert(ctx context.Context, entry Entry) (*Entry, error)
	// Get returns nil without error when no entry exists.
	Get(ctx context.Context, userHash, date string) (*Entry, error)
	// ListRange returns entries with start <= date <= end, oldest first. A
	// zero start or end leaves that side open.
	ListRange(ctx context.Context, userHash string, start, end time.Time) ([]Entry, error)
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrDateRequired
	}
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// inRange reports whether day falls inside [start, end]; zero bounds are open.
func inRange(day, start, end time.Time) bool {
	if !start.IsZero() && day.Before(start) {
		return false
	}
	if !end.IsZero() && day.After(end) {
		return false
	}
	return true
}
