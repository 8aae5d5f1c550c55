package prescription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads prescriptions from the relational database.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("prescription: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("prescription: db required")
	}
	return &PostgresRepository{db: db}
}

const selectColumns = `id, user_hash, medications, warnings, allergies, extracted_text, created_at`

// Save inserts a record and returns it with its generated id.
func (r *PostgresRepository) Save(ctx context.Context, rec Record) (*Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	meds, err := json.Marshal(rec.Medications)
	if err != nil {
		return nil, fmt.Errorf("prescription: marshal medications: %w", err)
	}
	query := `
		INSERT INTO prescriptions (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.UserHash,
		meds,
		nonNil(rec.Warnings),
		nonNil(rec.Allergies),
		rec.ExtractedText,
		rec.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("prescription: insert failed: %w", err)
	}
	return &rec, nil
}

// FindByID fetches a single record.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + selectColumns + ` FROM prescriptions WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// FindLatestForUser fetches the newest record for the user hash.
func (r *PostgresRepository) FindLatestForUser(ctx context.Context, userHash string) (*Record, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM prescriptions
		WHERE user_hash = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, userHash))
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Record, error) {
	var rec Record
	var meds []byte
	if err := row.Scan(
		&rec.ID,
		&rec.UserHash,
		&meds,
		&rec.Warnings,
		&rec.Allergies,
		&rec.ExtractedText,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("prescription: select failed: %w", err)
	}
	if len(meds) > 0 {
		if err := json.Unmarshal(meds, &rec.Medications); err != nil {
			return nil, fmt.Errorf("prescription: decode medications: %w", err)
		}
	}
	return &rec, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
