package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/baymax-health/internal/triage"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresTurnStore keeps turns in the conversation_turns table.
type PostgresTurnStore struct {
	db     pgxQuerier
	tracer trace.Tracer
}

func NewPostgresTurnStore(pool *pgxpool.Pool) *PostgresTurnStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return newPostgresTurnStoreWithDB(pool)
}

func newPostgresTurnStoreWithDB(db pgxQuerier) *PostgresTurnStore {
	if db == nil {
		panic("conversation: db required")
	}
	return &PostgresTurnStore{
		db:     db,
		tracer: otel.Tracer("baymax.internal.conversation.postgres"),
	}
}

const turnColumns = `id, user_hash, user_message, bot_response, classification, phi_detected, phi_categories, is_emergency, created_at`

func (s *PostgresTurnStore) AppendTurn(ctx context.Context, turn Turn) error {
	ctx, span := s.tracer.Start(ctx, "conversation.postgres.append_turn")
	defer span.End()

	query := `
		INSERT INTO conversation_turns (` + turnColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := s.db.Exec(ctx, query,
		turn.ID,
		turn.UserHash,
		turn.UserMessage,
		turn.BotResponse,
		string(turn.Classification),
		turn.PHIDetected,
		categoryStrings(turn.PHICategories),
		turn.IsEmergency,
		turn.Timestamp,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: insert turn: %w", err)
	}
	return nil
}

func (s *PostgresTurnStore) FindRecentTurns(ctx context.Context, userHash string, limit int) ([]Turn, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.postgres.recent_turns")
	defer span.End()

	query := `
		SELECT ` + turnColumns + `
		FROM conversation_turns
		WHERE user_hash = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, userHash, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: query recent turns: %w", err)
	}
	defer rows.Close()

	var newestFirst []Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		newestFirst = append(newestFirst, turn)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: iterate recent turns: %w", err)
	}

	out := make([]Turn, len(newestFirst))
	for i, turn := range newestFirst {
		out[len(newestFirst)-1-i] = turn
	}
	return out, nil
}

func (s *PostgresTurnStore) FindLastTurn(ctx context.Context, userHash string) (*Turn, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.postgres.last_turn")
	defer span.End()

	query := `
		SELECT ` + turnColumns + `
		FROM conversation_turns
		WHERE user_hash = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	turn, err := scanTurn(s.db.QueryRow(ctx, query, userHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, err
	}
	return &turn, nil
}

func scanTurn(row pgx.Row) (Turn, error) {
	var turn Turn
	var classification string
	var categories []string
	if err := row.Scan(
		&turn.ID,
		&turn.UserHash,
		&turn.UserMessage,
		&turn.BotResponse,
		&classification,
		&turn.PHIDetected,
		&categories,
		&turn.IsEmergency,
		&turn.Timestamp,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Turn{}, err
		}
		return Turn{}, fmt.Errorf("conversation: scan turn: %w", err)
	}
	turn.Classification = triage.Classification(classification)
	turn.PHICategories = parseCategories(categories)
	return turn, nil
}
