package tokenstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mondo/internal/config"
	"github.com/dmitrijs2005/mondo/internal/mondo"
)

const (
	upsertQuery = `(?s)^INSERT\s+INTO\s+oauth_tokens\b.*ON\s+CONFLICT\s+\(key\)\s+DO\s+UPDATE\b.*$`
	selectQuery = `(?s)^SELECT\s+access_token,\s*refresh_token,\s*expires_at,\s*account_id\s+FROM\s+oauth_tokens\s+WHERE\s+key\s*=\s*\$1\s*$`
	deleteQuery = `(?s)^DELETE\s+FROM\s+oauth_tokens\s+WHERE\s+key\s*=\s*\$1\s*$`
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

// nullTime matches the expires_at argument.
type nullTime struct {
	valid bool
	at    time.Time
}

func (m nullTime) Match(v driver.Value) bool {
	if !m.valid {
		return v == nil
	}
	got, ok := v.(time.Time)
	return ok && got.Equal(m.at)
}

func TestPostgresStore_Save(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(upsertQuery).
		WithArgs("token_info", "access-1", "refresh-1", nullTime{valid: true, at: sample.ExpiresAt}, "acc_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Save(context.Background(), "token_info", sample))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveUnknownExpiry(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(upsertQuery).
		WithArgs("k", "a", "r", nullTime{}, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Save(context.Background(), "k", mondo.Token{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(upsertQuery).WillReturnError(errors.New("db down"))

	err := s.Save(context.Background(), "k", sample)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestPostgresStore_Load(t *testing.T) {
	s, mock := newStoreWithMock(t)

	local := sample.ExpiresAt.In(time.FixedZone("BST", 3600))
	mock.ExpectQuery(selectQuery).
		WithArgs("token_info").
		WillReturnRows(sqlmock.NewRows([]string{"access_token", "refresh_token", "expires_at", "account_id"}).
			AddRow("access-1", "refresh-1", local, "acc_1"))

	got, err := s.Load(context.Background(), "token_info")
	require.NoError(t, err)
	assert.Equal(t, sample, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadNullExpiry(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(selectQuery).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"access_token", "refresh_token", "expires_at", "account_id"}).
			AddRow("a", "r", nil, ""))

	got, err := s.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.IsZero())
}

func TestPostgresStore_LoadNotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(selectQuery).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := s.Load(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_Delete(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(deleteQuery).WithArgs("k").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Delete(context.Background(), "k"))

	mock.ExpectExec(deleteQuery).WithArgs("k").WillReturnError(errors.New("boom"))
	require.Error(t, s.Delete(context.Background(), "k"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func stubOpen(t *testing.T, migrateErr error) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	origOpen, origUp := sqlOpen, gooseUpContext
	t.Cleanup(func() { sqlOpen, gooseUpContext = origOpen, origUp })

	sqlOpen = func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "pgx" || dsn != "postgres://test" {
			return nil, errors.New("unexpected open")
		}
		return db, nil
	}
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return migrateErr
	}
	return mock
}

func TestOpenPostgres(t *testing.T) {
	mock := stubOpen(t, nil)

	s, err := New(context.Background(), config.StoreConfig{DSN: "postgres://test", Dir: t.TempDir()})
	require.NoError(t, err)

	pg, ok := s.(*PostgresStore)
	require.True(t, ok)

	mock.ExpectClose()
	require.NoError(t, pg.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenPostgres_MigrationError(t *testing.T) {
	mock := stubOpen(t, errors.New("boom"))
	mock.ExpectClose()

	_, err := OpenPostgres(context.Background(), "postgres://test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration error: boom")
}

func TestPostgresStore_CloseWithoutOwnership(t *testing.T) {
	s, _ := newStoreWithMock(t)
	assert.NoError(t, s.Close())
}
