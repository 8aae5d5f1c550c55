// Package prescription stores parsed prescription records used as chat context.
package prescription

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("prescription: not found")

// Medication is a single drug line on a prescription.
type Medication struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
}

// Record is a stored prescription with its extracted text.
type Record struct {
	ID            string       `json:"id"`
	UserHash      string       `json:"user_hash"`
	Medications   []Medication `json:"medications"`
	Warnings      []string     `json:"warnings"`
	Allergies     []string     `json:"allergies"`
	ExtractedText string       `json:"extracted_text"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Repository is the read side the chat pipeline depends on.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Record, error)
	FindLatestForUser(ctx context.Context, userHash string) (*Record, error)
}
