package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/baymax-health/internal/observability/metrics"
	"github.com/wolfman30/baymax-health/internal/phi"
	"github.com/wolfman30/baymax-health/internal/triage"
	"github.com/wolfman30/baymax-health/pkg/logging"
)

// AnonymousUserID is used when a request carries no user id.
const AnonymousUserID = "anonymous"

var (
	// ErrInvalidMessage is returned for an absent, empty or non-string message.
	ErrInvalidMessage = errors.New("conversation: message must be a non-empty string")
	// ErrGenerationFailed wraps any failure of the text generation call.
	ErrGenerationFailed = errors.New("conversation: response generation failed")
)

var chatTracer = otel.Tracer("baymax.internal.conversation")

// ChatRequest is one inbound chat turn. Message stays untyped so non-string
// JSON values can be rejected as input errors.
type ChatRequest struct {
	Message        any    `json:"message"`
	UserID         string `json:"user_id"`
	PrescriptionID string `json:"prescription_id,omitempty"`
}

// ChatResponse is returned for every successful turn, including refusals.
type ChatResponse struct {
	Response       string                `json:"response"`
	Classification triage.Classification `json:"classification"`
	Anonymized     bool                  `json:"anonymized"`
	PHIDetected    bool                  `json:"phi_detected"`
	IsEmergency    bool                  `json:"is_emergency,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// TurnHandler is the produced interface consumed by the HTTP layer.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ComplianceRecorder receives privacy and safety events. Failures are logged
// by the pipeline and never reach the user.
type ComplianceRecorder interface {
	LogPHIDetected(ctx context.Context, userHash string, categories []string) error
	LogEmergencyDetected(ctx context.Context, userHash string, phiDetected bool) error
	LogGenerationFailed(ctx context.Context, userHash string, classification string) error
}

// TurnArchiver mirrors logged turns to long-term storage.
type TurnArchiver interface {
	ArchiveTurn(ctx context.Context, turn Turn) error
}

// Service runs the chat pipeline. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	turns      TurnStore
	assembler  *Assembler
	generator  Generator
	redactor   *phi.Redactor
	compliance ComplianceRecorder
	archiver   TurnArchiver
	logger     *logging.Logger
	metrics    *metrics.ChatMetrics
	now        func() time.Time
}

type ServiceOption func(*Service)

// WithCompliance records PHI, emergency and generation failure events.
func WithCompliance(recorder ComplianceRecorder) ServiceOption {
	return func(s *Service) {
		s.compliance = recorder
	}
}

// WithArchiver mirrors each logged turn after it is appended.
func WithArchiver(archiver TurnArchiver) ServiceOption {
	return func(s *Service) {
		s.archiver = archiver
	}
}

func WithMetrics(m *metrics.ChatMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *logging.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now for turn timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(turns TurnStore, assembler *Assembler, generator Generator, opts ...ServiceOption) *Service {
	if turns == nil {
		panic("conversation: turn store cannot be nil")
	}
	if generator == nil {
		panic("conversation: generator cannot be nil")
	}
	s := &Service{
		turns:     turns,
		assembler: assembler,
		generator: generator,
		redactor:  phi.Default(),
		logger:    logging.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.assembler == nil {
		s.assembler = NewAssembler(turns, nil, DefaultWindow, s.logger, s.metrics)
	}
	return s
}

// HandleTurn runs one message through redaction, emergency check, privacy
// gate, classification, context assembly and generation, then logs the turn.
func (s *Service) HandleTurn(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, span := chatTracer.Start(ctx, "conversation.handle_turn")
	defer span.End()

	message, ok := req.Message.(string)
	if !ok || strings.TrimSpace(message) == "" {
		s.metrics.ObserveTurn(metrics.OutcomeInvalid, "")
		return nil, ErrInvalidMessage
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = AnonymousUserID
	}
	userHash := phi.HashIdentifier(userID)
	redaction := s.redactor.Redact(message)
	for _, f := range redaction.Findings {
		s.metrics.ObservePHIFinding(string(f.Category))
	}
	logger := s.logger.WithUser(userHash)
	span.SetAttributes(
		attribute.String("user_hash", userHash),
		attribute.Bool("phi_detected", redaction.Detected()),
	)

	if phrase, ok := triage.MatchedEmergencyPhrase(message); ok {
		turn := s.newTurn(userHash, redaction, EmergencyResponse, triage.ClassEmergency, true)
		logger.Warn("emergency language detected", "phrase", phrase, "phi_detected", turn.PHIDetected)
		if s.compliance != nil {
			if err := s.compliance.LogEmergencyDetected(detached(ctx), userHash, turn.PHIDetected); err != nil {
				s.auditFailed(logger, "compliance", err)
			}
		}
		s.logTurn(ctx, logger, turn)
		s.metrics.ObserveTurn(metrics.OutcomeEmergency, string(turn.Classification))
		return responseFor(turn), nil
	}

	if redaction.Detected() {
		turn := s.newTurn(userHash, redaction, PHIRefusalResponse, triage.ClassPHIDetected, false)
		logger.Info("phi detected, refusing turn",
			"categories", redaction.CategoryNames(),
			"findings", len(redaction.Findings),
		)
		if s.compliance != nil {
			if err := s.compliance.LogPHIDetected(detached(ctx), userHash, redaction.CategoryNames()); err != nil {
				s.auditFailed(logger, "compliance", err)
			}
		}
		s.logTurn(ctx, logger, turn)
		s.metrics.ObserveTurn(metrics.OutcomePHIBlocked, string(turn.Classification))
		return responseFor(turn), nil
	}

	class := triage.Classify(redaction.RedactedText)
	assembled := s.assembler.Assemble(ctx, userHash, req.PrescriptionID)
	if assembled.HistoryGated {
		logger.Info("previous turn was refused for phi, history withheld")
	}
	prompt := buildPrompt(assembled.History, assembled.Prescription, class, redaction.RedactedText)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		logger.Error("response generation failed", "classification", class, "error", err)
		if s.compliance != nil {
			if cerr := s.compliance.LogGenerationFailed(detached(ctx), userHash, string(class)); cerr != nil {
				s.auditFailed(logger, "compliance", cerr)
			}
		}
		s.metrics.ObserveTurn(metrics.OutcomeGenerationFailed, string(class))
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	turn := s.newTurn(userHash, redaction, text, class, false)
	s.logTurn(ctx, logger, turn)
	s.metrics.ObserveTurn(metrics.OutcomeAnswered, string(class))
	logger.Info("turn answered", "classification", class, "history_gated", assembled.HistoryGated)
	return responseFor(turn), nil
}

func (s *Service) newTurn(userHash string, redaction phi.Result, response string, class triage.Classification, emergency bool) Turn {
	return Turn{
		ID:             uuid.NewString(),
		UserHash:       userHash,
		UserMessage:    redaction.RedactedText,
		BotResponse:    response,
		Classification: class,
		PHIDetected:    redaction.Detected(),
		PHICategories:  redaction.Categories(),
		IsEmergency:    emergency,
		Timestamp:      s.now().UTC(),
	}
}

// logTurn appends the turn and mirrors it to the archive. Neither failure
// changes the user-visible outcome.
func (s *Service) logTurn(ctx context.Context, logger *logging.Logger, turn Turn) {
	ctx = detached(ctx)
	if err := s.turns.AppendTurn(ctx, turn); err != nil {
		s.auditFailed(logger, "audit", err)
		return
	}
	if s.archiver != nil {
		if err := s.archiver.ArchiveTurn(ctx, turn); err != nil {
			s.auditFailed(logger, "archive", err)
		}
	}
}

func (s *Service) auditFailed(logger *logging.Logger, source string, err error) {
	logger.Error("turn bookkeeping failed", "source", source, "error", err)
	s.metrics.ObserveDegradation(source)
}

// detached keeps context values but drops cancellation.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func responseFor(turn Turn) *ChatResponse {
	return &ChatResponse{
		Response:       turn.BotResponse,
		Classification: turn.Classification,
		Anonymized:     true,
		PHIDetected:    turn.PHIDetected,
		IsEmergency:    turn.IsEmergency,
		Timestamp:      turn.Timestamp,
	}
}
