package sqlbase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func expectLocked(mock sqlmock.Sqlmock, current int) {
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock($1)")).
		WithArgs(MigrationLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(current))
}

func expectUnlocked(mock sqlmock.Sqlmock) {
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(MigrationLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectLocked(mock, 1)

	for _, version := range []int{2, 3} {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")).
			WithArgs(version).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	expectUnlocked(mock)

	manager := NewMigrationManager(testLogger(), db, map[int]string{
		3: "CREATE TABLE c (id TEXT)",
		1: "CREATE TABLE a (id TEXT)",
		2: "CREATE TABLE b (id TEXT)",
	})

	require.NoError(t, manager.RunMigrations(context.Background()))
	assert.Equal(t, 3, manager.LatestVersion())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_UpToDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectLocked(mock, 2)
	expectUnlocked(mock)

	manager := NewMigrationManager(testLogger(), db, map[int]string{1: "SELECT 1", 2: "SELECT 2"})

	require.NoError(t, manager.RunMigrations(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectLocked(mock, 0)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a")).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()
	expectUnlocked(mock)

	manager := NewMigrationManager(testLogger(), db, map[int]string{1: "CREATE TABLE a (id TEXT)"})

	err = manager.RunMigrations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute migration 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_LockFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock($1)")).WillReturnError(errors.New("connection reset"))

	err = NewMigrationManager(testLogger(), db, map[int]string{1: "SELECT 1"}).RunMigrations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire migration lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}
