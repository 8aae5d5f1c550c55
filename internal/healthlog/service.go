package healthlog

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/baymax-health/internal/phi"
	"github.com/wolfman30/baymax-health/pkg/logging"
)

// AnonymousUserID is used when no user id is supplied.
const AnonymousUserID = "anonymous"

// Service hashes the caller's identifier and masks free text before storage.
type Service struct {
	repo     Repository
	redactor *phi.Redactor
	logger   *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("healthlog: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, redactor: phi.Default(), logger: logger}
}

// Save upserts the entry for userID. UserHash on the input is ignored.
func (s *Service) Save(ctx context.Context, userID string, entry Entry) (*Entry, error) {
	if _, err := ParseDate(entry.Date); err != nil {
		return nil, err
	}
	entry.Date = strings.TrimSpace(entry.Date)
	entry.UserHash = hashUser(userID)

	symptom := s.redactor.Redact(entry.Symptom)
	note := s.redactor.Redact(entry.Note)
	entry.Symptom = symptom.RedactedText
	entry.Note = note.RedactedText
	if symptom.Detected() || note.Detected() {
		s.logger.WithUser(entry.UserHash).Info("masked phi in health log",
			"date", entry.Date,
			"findings", len(symptom.Findings)+len(note.Findings),
		)
	}
	return s.repo.Upsert(ctx, entry)
}

// Find returns the entry for userID on date, or nil.
func (s *Service) Find(ctx context.Context, userID, date string) (*Entry, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, hashUser(userID), strings.TrimSpace(date))
}

// List returns userID's entries between start and end, oldest first. Either
// bound may be empty for an open range.
func (s *Service) List(ctx context.Context, userID, start, end string) ([]Entry, error) {
	from, err := parseBound(start)
	if err != nil {
		return nil, err
	}
	to, err := parseBound(end)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, ErrRangeInverted
	}
	return s.repo.ListRange(ctx, hashUser(userID), from, to)
}

func parseBound(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	return ParseDate(value)
}

func hashUser(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = AnonymousUserID
	}
	return phi.HashIdentifier(userID)
}
