package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// Store is an encrypted-at-rest KV wrapper around Badger, used for the
// wallet keystore. Encryption comes from Badger's own options (value log
// plus key registry), not from this wrapper.
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 bytes; nil opens the DB unencrypted (not recommended)
	ReadOnly      bool
}

func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("secretstore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// Badger requires an index cache when encryption is on
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) GetString(key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("secretstore: not opened")
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return "", false, errors.New("secretstore: key is empty")
	}
	var (
		out   string
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return out, found, nil
}

func (s *Store) SetString(key string, val string) error {
	if s == nil || s.db == nil {
		return errors.New("secretstore: not opened")
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return errors.New("secretstore: key is empty")
	}
	v := []byte(val)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, v)
	})
}

// ParseKey decodes a 32-byte key given as hex (with or without 0x) or
// base64. Empty input returns nil without error.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}
