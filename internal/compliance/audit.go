// Package compliance records privacy and safety events for later review.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuditEventType represents the type of compliance event.
type AuditEventType string

const (
	// EventPHIDetected is logged when a message is refused for PHI.
	EventPHIDetected AuditEventType = "compliance.phi_detected"
	// EventEmergencyDetected is logged when emergency language short-circuits a turn.
	EventEmergencyDetected AuditEventType = "compliance.emergency_detected"
	// EventGenerationFailed is logged when the model call fails and no turn is recorded.
	EventGenerationFailed AuditEventType = "compliance.generation_failed"
)

// redactedMarker replaces message text on PHI events.
const redactedMarker = "[REDACTED]"

// AuditEvent represents an immutable compliance audit record. UserHash is the
// hashed identifier; raw identifiers never reach this table.
type AuditEvent struct {
	ID            string          `json:"id"`
	EventType     AuditEventType  `json:"event_type"`
	UserHash      string          `json:"user_hash"`
	UserMessage   string          `json:"user_message,omitempty"`
	PHICategories []string        `json:"phi_categories,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// PHI detected
	FindingCount int `json:"finding_count,omitempty"`

	// Emergency detected
	PHIDetected bool `json:"phi_detected,omitempty"`

	// Generation failed
	Classification string `json:"classification,omitempty"`
}

// AuditService handles compliance audit logging.
type AuditService struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	if db == nil {
		panic("compliance: db cannot be nil")
	}
	return &AuditService{db: db, now: time.Now}
}

// LogEvent records a compliance audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.UserHash == "" {
		return errors.New("compliance: user hash required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	if event.PHICategories == nil {
		event.PHICategories = []string{}
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO compliance_audit_events (
			id, event_type, user_hash, user_message, phi_categories, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		event.UserHash,
		nullString(event.UserMessage),
		pq.Array(event.PHICategories),
		[]byte(details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: log audit event: %w", err)
	}
	return nil
}

// LogPHIDetected records a PHI refusal. Only category names are stored.
func (s *AuditService) LogPHIDetected(ctx context.Context, userHash string, categories []string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{FindingCount: len(categories)})
	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventPHIDetected,
		UserHash:      userHash,
		UserMessage:   redactedMarker,
		PHICategories: categories,
		Details:       detailsJSON,
	})
}

func (s *AuditService) LogEmergencyDetected(ctx context.Context, userHash string, phiDetected bool) error {
	detailsJSON, _ := json.Marshal(AuditDetails{PHIDetected: phiDetected})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventEmergencyDetected,
		UserHash:  userHash,
		Details:   detailsJSON,
	})
}

func (s *AuditService) LogGenerationFailed(ctx context.Context, userHash string, classification string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{Classification: classification})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventGenerationFailed,
		UserHash:  userHash,
		Details:   detailsJSON,
	})
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	UserHash  string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// QueryEvents retrieves audit events for one user hash, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	if filter.UserHash == "" {
		return nil, errors.New("compliance: user hash required")
	}
	query := `
		SELECT id, event_type, user_hash, user_message, phi_categories, details, created_at
		FROM compliance_audit_events
		WHERE user_hash = $1
	`
	args := []any{filter.UserHash}
	argIdx := 2

	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, string(filter.EventType))
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var eventType string
		var userMsg sql.NullString
		var details []byte
		if err := rows.Scan(
			&e.ID, &eventType, &e.UserHash, &userMsg,
			pq.Array(&e.PHICategories), &details, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("compliance: scan audit event: %w", err)
		}
		e.EventType = AuditEventType(eventType)
		e.UserMessage = userMsg.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: iterate audit events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
