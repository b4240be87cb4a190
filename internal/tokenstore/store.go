// Package tokenstore persists mondo token records between runs.
//
// Two backends exist: FileStore keeps one JSON file per key and can encrypt
// it with a passphrase, PostgresStore keeps one row per key.
package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mondo/internal/config"
	"github.com/dmitrijs2005/mondo/internal/mondo"
)

// ErrNotFound is returned by Load when no record is stored under the key.
var ErrNotFound = errors.New("token record not found")

// Store saves and loads token records by key. Deleting a missing key is not
// an error.
type Store interface {
	Save(ctx context.Context, key string, t mondo.Token) error
	Load(ctx context.Context, key string) (mondo.Token, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// New opens the store selected by cfg: PostgreSQL when a DSN is set, the
// file store otherwise.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	if cfg.DSN != "" {
		s, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres token store: %w", err)
		}
		return s, nil
	}
	s, err := NewFileStore(cfg.Dir, cfg.Passphrase)
	if err != nil {
		return nil, err
	}
	return s, nil
}
