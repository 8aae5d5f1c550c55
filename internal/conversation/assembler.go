package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/baymax-health/internal/observability/metrics"
	"github.com/wolfman30/baymax-health/internal/phi"
	"github.com/wolfman30/baymax-health/internal/prescription"
	"github.com/wolfman30/baymax-health/internal/triage"
	"github.com/wolfman30/baymax-health/pkg/logging"
)

const noneMarker = "none"

// WindowConfig bounds the assembled context.
type WindowConfig struct {
	TurnLimit    int
	LineLimit    int
	ExcerptChars int
}

// DefaultWindow is 30 turns, 60 rendered lines and a 500 character excerpt.
var DefaultWindow = WindowConfig{TurnLimit: 30, LineLimit: 60, ExcerptChars: 500}

// AssembledContext is the prompt context for one turn.
type AssembledContext struct {
	History      []ChatMessage
	Prescription string
	// HistoryGated is set when the previous turn was refused for PHI.
	HistoryGated bool
}

// Assembler reads history and prescription snapshots for a turn. Load
// failures degrade to empty context and are only logged.
type Assembler struct {
	turns         TurnStore
	prescriptions prescription.Repository
	window        WindowConfig
	logger        *logging.Logger
	metrics       *metrics.ChatMetrics
}

func NewAssembler(turns TurnStore, prescriptions prescription.Repository, window WindowConfig, logger *logging.Logger, m *metrics.ChatMetrics) *Assembler {
	if window.TurnLimit <= 0 {
		window.TurnLimit = DefaultWindow.TurnLimit
	}
	if window.LineLimit <= 0 {
		window.LineLimit = DefaultWindow.LineLimit
	}
	if window.ExcerptChars <= 0 {
		window.ExcerptChars = DefaultWindow.ExcerptChars
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Assembler{
		turns:         turns,
		prescriptions: prescriptions,
		window:        window,
		logger:        logger,
		metrics:       m,
	}
}

// Assemble builds the history and prescription blocks for userHash.
func (a *Assembler) Assemble(ctx context.Context, userHash, prescriptionID string) AssembledContext {
	var out AssembledContext
	out.History, out.HistoryGated = a.history(ctx, userHash)
	if rec := a.loadPrescription(ctx, userHash, prescriptionID); rec != nil {
		out.Prescription = renderPrescription(rec, a.window.ExcerptChars)
	}
	return out
}

func (a *Assembler) history(ctx context.Context, userHash string) ([]ChatMessage, bool) {
	if a.turns == nil {
		return nil, false
	}
	last, err := a.turns.FindLastTurn(ctx, userHash)
	if err != nil {
		a.degrade("history", userHash, err)
		return nil, false
	}
	if last == nil {
		return nil, false
	}
	if last.Classification == triage.ClassPHIDetected {
		return nil, true
	}

	turns, err := a.turns.FindRecentTurns(ctx, userHash, a.window.TurnLimit)
	if err != nil {
		a.degrade("history", userHash, err)
		return nil, false
	}
	if len(turns) > a.window.TurnLimit {
		turns = turns[len(turns)-a.window.TurnLimit:]
	}
	return windowHistory(turns, a.window.LineLimit), false
}

// windowHistory turns each stored turn into a user and an assistant message
// and keeps only the newest lineLimit lines. A message cut by the cap keeps
// its newest lines. A leading assistant message is dropped so the window
// always opens on a user message.
func windowHistory(turns []Turn, lineLimit int) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs,
			ChatMessage{Role: ChatRoleUser, Content: t.UserMessage},
			ChatMessage{Role: ChatRoleAssistant, Content: t.BotResponse},
		)
	}
	if lineLimit > 0 {
		budget := lineLimit
		start := len(msgs)
		for start > 0 && budget > 0 {
			lines := strings.Split(msgs[start-1].Content, "\n")
			if len(lines) > budget {
				msgs[start-1].Content = strings.Join(lines[len(lines)-budget:], "\n")
				budget = 0
			} else {
				budget -= len(lines)
			}
			start--
		}
		msgs = msgs[start:]
	}
	if len(msgs) > 0 && msgs[0].Role == ChatRoleAssistant {
		msgs = msgs[1:]
	}
	return msgs
}

// renderHistory writes each message with a role prefix on its first line.
func renderHistory(msgs []ChatMessage) string {
	lines := make([]string, 0, len(msgs)*2)
	for _, m := range msgs {
		prefix := "User: "
		if m.Role == ChatRoleAssistant {
			prefix = "Assistant: "
		}
		lines = append(lines, strings.Split(prefix+m.Content, "\n")...)
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) loadPrescription(ctx context.Context, userHash, id string) *prescription.Record {
	if a.prescriptions == nil {
		return nil
	}
	if id = strings.TrimSpace(id); id != "" {
		rec, err := a.prescriptions.FindByID(ctx, id)
		switch {
		case err == nil && rec != nil:
			return rec
		case err != nil && !errors.Is(err, prescription.ErrNotFound):
			a.degrade("prescription", userHash, err)
		default:
			a.logger.Debug("explicit prescription not found, using latest", "user_hash", userHash)
		}
	}

	rec, err := a.prescriptions.FindLatestForUser(ctx, userHash)
	if err != nil {
		if !errors.Is(err, prescription.ErrNotFound) {
			a.degrade("prescription", userHash, err)
		}
		return nil
	}
	return rec
}

func (a *Assembler) degrade(source, userHash string, err error) {
	a.logger.Warn("context load failed, continuing without it",
		"source", source,
		"user_hash", userHash,
		"error", err,
	)
	a.metrics.ObserveDegradation(source)
}

func renderPrescription(rec *prescription.Record, excerptChars int) string {
	meds := make([]string, 0, len(rec.Medications))
	for _, m := range rec.Medications {
		line := strings.TrimSpace(strings.TrimSpace(m.Name) + " " + strings.TrimSpace(m.Dosage))
		if line != "" {
			meds = append(meds, line)
		}
	}

	var b strings.Builder
	b.WriteString("Prescription on file:\n")
	b.WriteString("Medications: " + joinOrNone(meds) + "\n")
	b.WriteString("Warnings: " + joinOrNone(rec.Warnings) + "\n")
	b.WriteString("Allergies: " + joinOrNone(rec.Allergies) + "\n")
	b.WriteString("Extracted text excerpt: " + excerpt(rec.ExtractedText, excerptChars))
	return b.String()
}

// excerpt keeps the first n characters with PHI masked.
func excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return noneMarker
	}
	if runes := []rune(text); len(runes) > n {
		text = string(runes[:n])
	}
	return phi.Redact(text).RedactedText
}

func joinOrNone(values []string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return noneMarker
	}
	return strings.Join(kept, "; ")
}
