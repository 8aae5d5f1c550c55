package conversation

import (
	"context"
	"testing"
)

func TestInMemoryTurnStore(t *testing.T) {
	store := NewInMemoryTurnStore()
	ctx := context.Background()

	last, err := store.FindLastTurn(ctx, "nobody")
	if err != nil || last != nil {
		t.Fatalf("expected no turn, got %+v %v", last, err)
	}

	for _, msg := range []string{"a", "b", "c"} {
		if err := store.AppendTurn(ctx, Turn{UserHash: "u", UserMessage: msg}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := store.AppendTurn(ctx, Turn{UserHash: "other", UserMessage: "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	recent, err := store.FindRecentTurns(ctx, "u", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].UserMessage != "b" || recent[1].UserMessage != "c" {
		t.Fatalf("expected [b c] oldest first, got %+v", recent)
	}

	recent[0].UserMessage = "mutated"
	again, _ := store.FindRecentTurns(ctx, "u", 0)
	if again[1].UserMessage != "b" {
		t.Fatalf("store must hand out copies")
	}

	last, err = store.FindLastTurn(ctx, "u")
	if err != nil || last == nil || last.UserMessage != "c" {
		t.Fatalf("expected last turn c, got %+v %v", last, err)
	}
}
