package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownUser is returned when a credential key is not in the registry
var ErrUnknownUser = errors.New("unknown user")

// ErrDuplicateUser is returned when an update would give two records the same athlete id
var ErrDuplicateUser = errors.New("athlete already registered")

// CredentialStore persists the full set of credentials.
// Save replaces everything previously stored; a reader never observes a partial write.
type CredentialStore interface {
	Load(ctx context.Context) ([]Credential, error)
	Save(ctx context.Context, creds []Credential) error
	Close() error
}

// Backend names accepted by Open
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Options selects and configures a credential store backend.
type Options struct {
	Backend string
	// Path is the users.json file (file) or the database file (sqlite).
	Path string
	// DSN is the postgres connection string.
	DSN string
	// RedisAddr, RedisPassword, RedisDB and RedisKey configure the redis backend.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	// EncryptionKey, when set, seals token fields at rest. 32 bytes, hex or base64 encoded.
	EncryptionKey string
}

// Open builds the configured backend, wrapping it in a SealedStore when an
// encryption key is configured.
func Open(ctx context.Context, opts Options) (CredentialStore, error) {
	var (
		s   CredentialStore
		err error
	)

	switch opts.Backend {
	case "", BackendFile:
		s = NewFileStore(opts.Path)
	case BackendSQLite:
		s, err = OpenSQLite(opts.Path)
	case BackendPostgres:
		s, err = OpenPostgres(ctx, opts.DSN)
	case BackendRedis:
		s, err = OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisKey)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", opts.Backend, err)
	}

	if opts.EncryptionKey == "" {
		return s, nil
	}

	key, err := ParseKey(opts.EncryptionKey)
	if err != nil {
		s.Close()
		return nil, err
	}
	return NewSealedStore(s, key), nil
}
