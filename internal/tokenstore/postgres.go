package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/mondo/internal/dbx"
	"github.com/dmitrijs2005/mondo/internal/mondo"
	"github.com/dmitrijs2005/mondo/internal/tokenstore/migrations"
)

// PostgresStore keeps token records in the oauth_tokens table over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresStore struct {
	db     dbx.DBTX
	closer io.Closer
}

// NewPostgresStore binds a store to an existing handle. The schema must
// already be migrated.
func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// sqlOpen and gooseUpContext are seams for tests.
var (
	sqlOpen        = sql.Open
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
)

// OpenPostgres connects with the pgx driver and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return &PostgresStore{db: db, closer: db}, nil
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (s *PostgresStore) Save(ctx context.Context, key string, t mondo.Token) error {
	query := `
		INSERT INTO oauth_tokens (key, access_token, refresh_token, expires_at, account_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (key) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			account_id = EXCLUDED.account_id,
			updated_at = now()
	`
	expiresAt := sql.NullTime{Time: t.ExpiresAt.UTC(), Valid: !t.ExpiresAt.IsZero()}
	if _, err := s.db.ExecContext(ctx, query, key, t.AccessToken, t.RefreshToken, expiresAt, t.AccountID); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// Load returns the record stored under key, or ErrNotFound.
func (s *PostgresStore) Load(ctx context.Context, key string) (mondo.Token, error) {
	query := `
		SELECT access_token, refresh_token, expires_at, account_id
		FROM oauth_tokens
		WHERE key = $1
	`
	var (
		t         mondo.Token
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&t.AccessToken, &t.RefreshToken, &expiresAt, &t.AccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return mondo.Token{}, ErrNotFound
	}
	if err != nil {
		return mondo.Token{}, fmt.Errorf("db error: %w", err)
	}
	if expiresAt.Valid {
		t.ExpiresAt = expiresAt.Time.UTC().Truncate(time.Microsecond)
	}
	return t, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	query := `
		DELETE FROM oauth_tokens
		WHERE key = $1
	`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Close releases the connection pool when the store opened it itself.
func (s *PostgresStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
