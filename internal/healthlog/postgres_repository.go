package healthlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository keeps entries in the health_logs table.
type PostgresRepository struct {
	db rowQuerier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("healthlog: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("healthlog: db required")
	}
	return &PostgresRepository{db: db}
}

const entryColumns = `user_hash, log_date, took_medication, sleep_hours, vital_bpm, mood, symptom, note, updated_at`

// Upsert writes the entry in a single statement keyed on (user_hash, log_date).
func (r *PostgresRepository) Upsert(ctx context.Context, entry Entry) (*Entry, error) {
	day, err := ParseDate(entry.Date)
	if err != nil {
		return nil, err
	}
	query := `
		INSERT INTO health_logs (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_hash, log_date) DO UPDATE SET
			took_medication = EXCLUDED.took_medication,
			sleep_hours = EXCLUDED.sleep_hours,
			vital_bpm = EXCLUDED.vital_bpm,
			mood = EXCLUDED.mood,
			symptom = EXCLUDED.symptom,
			note = EXCLUDED.note,
			updated_at = NOW()
		RETURNING ` + entryColumns
	row := r.db.QueryRow(ctx, query,
		entry.UserHash,
		day,
		entry.TookMedication,
		entry.SleepHours,
		entry.VitalBPM,
		entry.Mood,
		entry.Symptom,
		entry.Note,
	)
	saved, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("healthlog: upsert failed: %w", err)
	}
	return saved, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userHash, date string) (*Entry, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + entryColumns + ` FROM health_logs WHERE user_hash = $1 AND log_date = $2`
	entry, err := scanEntry(r.db.QueryRow(ctx, query, userHash, day))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("healthlog: select failed: %w", err)
	}
	return entry, nil
}

// ListRange builds the date filter from whichever bounds are set.
func (r *PostgresRepository) ListRange(ctx context.Context, userHash string, start, end time.Time) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM health_logs WHERE user_hash = $1`
	args := []any{userHash}
	if !start.IsZero() {
		args = append(args, start)
		query += fmt.Sprintf(" AND log_date >= $%d", len(args))
	}
	if !end.IsZero() {
		args = append(args, end)
		query += fmt.Sprintf(" AND log_date <= $%d", len(args))
	}
	query += " ORDER BY log_date ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("healthlog: range query failed: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("healthlog: scan failed: %w", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("healthlog: range query failed: %w", err)
	}
	return out, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var day time.Time
	if err := row.Scan(
		&e.UserHash,
		&day,
		&e.TookMedication,
		&e.SleepHours,
		&e.VitalBPM,
		&e.Mood,
		&e.Symptom,
		&e.Note,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Date = day.Format(DateLayout)
	return &e, nil
}
