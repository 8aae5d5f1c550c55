package prescription

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "user_hash", "medications", "warnings", "allergies", "extracted_text", "created_at"}

func TestPostgresRepositoryFindByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("SELECT id, user_hash, medications").
		WithArgs("rx-1").
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			"rx-1",
			"abc",
			[]byte(`[{"name":"Lisinopril","dosage":"10mg"}]`),
			[]string{"may cause dizziness"},
			[]string{"penicillin"},
			"Take one tablet daily",
			created,
		))

	rec, err := repo.FindByID(context.Background(), "rx-1")
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.UserHash)
	assert.Equal(t, []Medication{{Name: "Lisinopril", Dosage: "10mg"}}, rec.Medications)
	assert.Equal(t, []string{"penicillin"}, rec.Allergies)
	assert.Equal(t, created, rec.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)

	mock.ExpectQuery("FROM prescriptions").
		WithArgs("abc").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.FindLatestForUser(context.Background(), "abc")
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)

	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs("abc").
		WillReturnError(errors.New("connection reset"))

	_, err = repo.FindLatestForUser(context.Background(), "abc")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresRepositorySave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)

	mock.ExpectExec("INSERT INTO prescriptions").
		WithArgs(pgxmock.AnyArg(), "abc", pgxmock.AnyArg(), []string{}, []string{"latex"}, "text", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := repo.Save(context.Background(), Record{UserHash: "abc", Allergies: []string{"latex"}, ExtractedText: "text"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
