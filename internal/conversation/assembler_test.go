package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/baymax-health/internal/prescription"
	"github.com/wolfman30/baymax-health/internal/triage"
)

func seedTurns(t *testing.T, store TurnStore, userHash string, n int, bot string) {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, store.AppendTurn(context.Background(), Turn{
			ID:             fmt.Sprintf("t-%02d", i),
			UserHash:       userHash,
			UserMessage:    fmt.Sprintf("q-%02d", i),
			BotResponse:    bot,
			Classification: triage.ClassGeneral,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestAssembleHistoryWindow(t *testing.T) {
	store := NewInMemoryTurnStore()
	seedTurns(t, store, "h", 40, "answer")

	a := NewAssembler(store, nil, DefaultWindow, quietLogger(), nil)
	got := a.Assemble(context.Background(), "h", "")

	rendered := renderHistory(got.History)
	lines := strings.Split(rendered, "\n")
	assert.Len(t, lines, 60)
	assert.Equal(t, "User: q-10", lines[0])
	assert.Equal(t, "Assistant: answer", lines[59])
	assert.NotContains(t, rendered, "q-09")
	assert.Contains(t, rendered, "q-39")
	require.Len(t, got.History, 60)
	assert.Equal(t, ChatMessage{Role: ChatRoleUser, Content: "q-10"}, got.History[0])
	assert.Equal(t, ChatRoleAssistant, got.History[59].Role)
	assert.False(t, got.HistoryGated)
}

func TestAssembleHistoryLineCapDropsOldestLines(t *testing.T) {
	store := NewInMemoryTurnStore()
	seedTurns(t, store, "h", 30, "first line\nsecond line")

	a := NewAssembler(store, nil, DefaultWindow, quietLogger(), nil)
	got := a.Assemble(context.Background(), "h", "")

	lines := strings.Split(renderHistory(got.History), "\n")
	require.Len(t, lines, 60)
	// three lines per turn, so the oldest 10 turns fall off
	assert.Equal(t, "User: q-10", lines[0])
	assert.Equal(t, "second line", lines[59])
}

func TestWindowHistoryTrimsOldestMessage(t *testing.T) {
	turns := []Turn{
		{UserMessage: "q-0", BotResponse: "a-0"},
		{UserMessage: "first line\nsecond line", BotResponse: "ok"},
	}

	got := windowHistory(turns, 2)
	assert.Equal(t, []ChatMessage{
		{Role: ChatRoleUser, Content: "second line"},
		{Role: ChatRoleAssistant, Content: "ok"},
	}, got)
	assert.Equal(t, "User: second line\nAssistant: ok", renderHistory(got))
}

func TestWindowHistoryOpensOnUserMessage(t *testing.T) {
	turns := []Turn{
		{UserMessage: "q-0", BotResponse: "first\nsecond"},
		{UserMessage: "q-1", BotResponse: "a-1"},
	}

	// the cap cuts into the first reply, which is then dropped
	got := windowHistory(turns, 3)
	require.Len(t, got, 2)
	assert.Equal(t, ChatMessage{Role: ChatRoleUser, Content: "q-1"}, got[0])
	assert.Equal(t, ChatMessage{Role: ChatRoleAssistant, Content: "a-1"}, got[1])

	assert.Len(t, windowHistory(turns, 0), 4)
}

func TestAssembleHistoryGate(t *testing.T) {
	store := NewInMemoryTurnStore()
	seedTurns(t, store, "h", 5, "answer")
	require.NoError(t, store.AppendTurn(context.Background(), Turn{
		UserHash:       "h",
		UserMessage:    "my email is [EMAIL_0]",
		BotResponse:    PHIRefusalResponse,
		Classification: triage.ClassPHIDetected,
		PHIDetected:    true,
	}))

	a := NewAssembler(store, nil, DefaultWindow, quietLogger(), nil)
	got := a.Assemble(context.Background(), "h", "")
	assert.Empty(t, got.History)
	assert.True(t, got.HistoryGated)
}

func TestAssembleHistoryRecentFailureDegrades(t *testing.T) {
	store := &failingTurnStore{InMemoryTurnStore: NewInMemoryTurnStore(), recentErr: errBoom}
	seedTurns(t, store.InMemoryTurnStore, "h", 3, "answer")

	a := NewAssembler(store, nil, DefaultWindow, quietLogger(), nil)
	got := a.Assemble(context.Background(), "h", "")
	assert.Empty(t, got.History)
	assert.False(t, got.HistoryGated)
}

func TestAssemblePrescriptionExplicitIDWins(t *testing.T) {
	rx := prescription.NewInMemoryRepository()
	ctx := context.Background()
	older, err := rx.Save(ctx, prescription.Record{
		UserHash:    "h",
		Medications: []prescription.Medication{{Name: "Metformin", Dosage: "500mg"}},
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = rx.Save(ctx, prescription.Record{
		UserHash:    "h",
		Medications: []prescription.Medication{{Name: "Lisinopril", Dosage: "10mg"}},
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	a := NewAssembler(nil, rx, DefaultWindow, quietLogger(), nil)

	got := a.Assemble(ctx, "h", older.ID)
	assert.Contains(t, got.Prescription, "Metformin 500mg")
	assert.NotContains(t, got.Prescription, "Lisinopril")

	got = a.Assemble(ctx, "h", "")
	assert.Contains(t, got.Prescription, "Lisinopril 10mg")

	got = a.Assemble(ctx, "h", "does-not-exist")
	assert.Contains(t, got.Prescription, "Lisinopril 10mg")

	got = a.Assemble(ctx, "someone-else", "")
	assert.Empty(t, got.Prescription)
}

func TestRenderPrescriptionTemplate(t *testing.T) {
	rec := &prescription.Record{
		Medications: []prescription.Medication{
			{Name: "Amoxicillin", Dosage: "500mg"},
			{Name: "Ibuprofen"},
		},
		Allergies:     []string{"penicillin", " "},
		ExtractedText: "Take with food.",
	}
	want := "Prescription on file:\n" +
		"Medications: Amoxicillin 500mg; Ibuprofen\n" +
		"Warnings: none\n" +
		"Allergies: penicillin\n" +
		"Extracted text excerpt: Take with food."
	assert.Equal(t, want, renderPrescription(rec, 500))
}

func TestRenderPrescriptionEmptySectionsSayNone(t *testing.T) {
	got := renderPrescription(&prescription.Record{}, 500)
	assert.Equal(t, "Prescription on file:\n"+
		"Medications: none\n"+
		"Warnings: none\n"+
		"Allergies: none\n"+
		"Extracted text excerpt: none", got)
}

func TestRenderPrescriptionExcerptIsBoundedAndMasked(t *testing.T) {
	long := strings.Repeat("x", 600)
	got := renderPrescription(&prescription.Record{ExtractedText: long}, 500)
	assert.Contains(t, got, "Extracted text excerpt: "+strings.Repeat("x", 500))
	assert.NotContains(t, got, strings.Repeat("x", 501))

	got = renderPrescription(&prescription.Record{ExtractedText: "Patient phone 555-123-4567. Take daily."}, 500)
	assert.Contains(t, got, "Patient phone [PHONE_0]. Take daily.")
}
