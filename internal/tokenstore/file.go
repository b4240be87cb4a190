package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/mondo/internal/cryptox"
	"github.com/dmitrijs2005/mondo/internal/mondo"
)

// FileStore writes each record to <dir>/<key>.json with mode 0600.
// With a passphrase the file holds a cryptox.Envelope instead of the plain
// record.
type FileStore struct {
	dir        string
	passphrase []byte
}

func NewFileStore(dir, passphrase string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token store dir: %w", err)
	}
	return &FileStore{dir: dir, passphrase: []byte(passphrase)}, nil
}

// Path returns the file a key is stored in.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Save(_ context.Context, key string, t mondo.Token) error {
	if err := validKey(key); err != nil {
		return err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token record: %w", err)
	}
	if len(s.passphrase) > 0 {
		env, err := cryptox.Seal(data, s.passphrase)
		if err != nil {
			return fmt.Errorf("encrypt token record: %w", err)
		}
		if data, err = json.Marshal(env); err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}
	}

	// replaced by rename, readers never see a partial file
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return fmt.Errorf("replace token record: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, key string) (mondo.Token, error) {
	if err := validKey(key); err != nil {
		return mondo.Token{}, err
	}

	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return mondo.Token{}, ErrNotFound
	}
	if err != nil {
		return mondo.Token{}, fmt.Errorf("read token record: %w", err)
	}

	if len(s.passphrase) > 0 {
		var env cryptox.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return mondo.Token{}, fmt.Errorf("decode envelope: %w", err)
		}
		if data, err = cryptox.Open(&env, s.passphrase); err != nil {
			return mondo.Token{}, err
		}
	}

	var t mondo.Token
	if err := json.Unmarshal(data, &t); err != nil {
		return mondo.Token{}, fmt.Errorf("decode token record: %w", err)
	}
	return t, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete token record: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// validKey rejects keys that would escape the store directory.
func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid token key %q", key)
	}
	return nil
}
