package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/wolfman30/baymax-health/internal/prescription"
)

type stubGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []Prompt
	hadDL   []bool
}

func (g *stubGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := ctx.Deadline()
	g.prompts = append(g.prompts, prompt)
	g.hadDL = append(g.hadDL, ok)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *stubGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1].String()
}

func (g *stubGenerator) lastStructured() Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return Prompt{}
	}
	return g.prompts[len(g.prompts)-1]
}

// failingTurnStore wraps a memory store and fails selected operations.
type failingTurnStore struct {
	*InMemoryTurnStore
	appendErr error
	recentErr error
	lastErr   error
}

func (s *failingTurnStore) AppendTurn(ctx context.Context, turn Turn) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.InMemoryTurnStore.AppendTurn(ctx, turn)
}

func (s *failingTurnStore) FindRecentTurns(ctx context.Context, userHash string, limit int) ([]Turn, error) {
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	return s.InMemoryTurnStore.FindRecentTurns(ctx, userHash, limit)
}

func (s *failingTurnStore) FindLastTurn(ctx context.Context, userHash string) (*Turn, error) {
	if s.lastErr != nil {
		return nil, s.lastErr
	}
	return s.InMemoryTurnStore.FindLastTurn(ctx, userHash)
}

type failingPrescriptions struct {
	byIDErr   error
	latest    *prescription.Record
	latestErr error
}

func (f *failingPrescriptions) FindByID(context.Context, string) (*prescription.Record, error) {
	return nil, f.byIDErr
}

func (f *failingPrescriptions) FindLatestForUser(context.Context, string) (*prescription.Record, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	if f.latest == nil {
		return nil, prescription.ErrNotFound
	}
	return f.latest, nil
}

type complianceEvent struct {
	kind     string
	userHash string
	detail   []string
}

type recordingCompliance struct {
	mu     sync.Mutex
	events []complianceEvent
	err    error
}

func (r *recordingCompliance) add(e complianceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingCompliance) LogPHIDetected(_ context.Context, userHash string, categories []string) error {
	return r.add(complianceEvent{kind: "phi", userHash: userHash, detail: categories})
}

func (r *recordingCompliance) LogEmergencyDetected(_ context.Context, userHash string, _ bool) error {
	return r.add(complianceEvent{kind: "emergency", userHash: userHash})
}

func (r *recordingCompliance) LogGenerationFailed(_ context.Context, userHash string, class string) error {
	return r.add(complianceEvent{kind: "generation_failed", userHash: userHash, detail: []string{class}})
}

type recordingArchiver struct {
	turns []Turn
	err   error
}

func (a *recordingArchiver) ArchiveTurn(_ context.Context, turn Turn) error {
	a.turns = append(a.turns, turn)
	return a.err
}

var errBoom = errors.New("boom")
