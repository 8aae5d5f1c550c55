package conversation

import (
	"context"
	"time"

	"github.com/wolfman30/baymax-health/internal/phi"
	"github.com/wolfman30/baymax-health/internal/triage"
)

// Turn is one logged chat exchange. UserMessage is always the redacted text.
type Turn struct {
	ID             string                `json:"id"`
	UserHash       string                `json:"user_hash"`
	UserMessage    string                `json:"user_message"`
	BotResponse    string                `json:"bot_response"`
	Classification triage.Classification `json:"classification"`
	PHIDetected    bool                  `json:"phi_detected"`
	PHICategories  []phi.Category        `json:"phi_categories,omitempty"`
	IsEmergency    bool                  `json:"is_emergency"`
	Timestamp      time.Time             `json:"timestamp"`
}

// TurnStore persists chat turns per user hash.
type TurnStore interface {
	// FindRecentTurns returns up to limit turns, oldest first.
	FindRecentTurns(ctx context.Context, userHash string, limit int) ([]Turn, error)
	AppendTurn(ctx context.Context, turn Turn) error
	// FindLastTurn returns nil without error when the user has no turns.
	FindLastTurn(ctx context.Context, userHash string) (*Turn, error)
}

func categoryStrings(cats []phi.Category) []string {
	if len(cats) == 0 {
		return []string{}
	}
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}

func parseCategories(values []string) []phi.Category {
	if len(values) == 0 {
		return nil
	}
	out := make([]phi.Category, len(values))
	for i, v := range values {
		out[i] = phi.Category(v)
	}
	return out
}
