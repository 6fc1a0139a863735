package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sealed:"

// ErrBadKey is returned for encryption keys that do not decode to 32 bytes
var ErrBadKey = errors.New("encryption key must be 32 bytes, hex or base64 encoded")

// ParseKey decodes a 32-byte secretbox key from hex or base64.
func ParseKey(s string) (*[32]byte, error) {
	s = strings.TrimSpace(s)

	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		raw, err = base64.StdEncoding.DecodeString(s)
	}
	if err != nil || len(raw) != 32 {
		return nil, ErrBadKey
	}

	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// SealedStore encrypts access and refresh tokens before they reach the
// wrapped store and decrypts them on load. Ids, names and expiries stay in
// the clear. Plaintext tokens written before sealing was enabled still load.
type SealedStore struct {
	inner CredentialStore
	key   *[32]byte
}

// NewSealedStore wraps inner with secretbox sealing under key
func NewSealedStore(inner CredentialStore, key *[32]byte) *SealedStore {
	return &SealedStore{inner: inner, key: key}
}

// Load reads from the wrapped store and opens sealed token fields
func (s *SealedStore) Load(ctx context.Context) ([]Credential, error) {
	creds, err := s.inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	for i := range creds {
		if creds[i].AccessToken, err = s.open(creds[i].AccessToken); err != nil {
			return nil, fmt.Errorf("opening access token for %s: %w", creds[i].Key(), err)
		}
		if creds[i].RefreshToken, err = s.open(creds[i].RefreshToken); err != nil {
			return nil, fmt.Errorf("opening refresh token for %s: %w", creds[i].Key(), err)
		}
	}
	return creds, nil
}

// Save seals token fields and writes through to the wrapped store
func (s *SealedStore) Save(ctx context.Context, creds []Credential) error {
	sealed := make([]Credential, len(creds))
	for i, c := range creds {
		var err error
		if c.AccessToken, err = s.seal(c.AccessToken); err != nil {
			return err
		}
		if c.RefreshToken, err = s.seal(c.RefreshToken); err != nil {
			return err
		}
		sealed[i] = c
	}
	return s.inner.Save(ctx, sealed)
}

// Close closes the wrapped store
func (s *SealedStore) Close() error {
	return s.inner.Close()
}

func (s *SealedStore) seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *SealedStore) open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}

	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decoding sealed value: %w", err)
	}
	if len(box) < 24+secretbox.Overhead {
		return "", errors.New("sealed value too short")
	}

	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, s.key)
	if !ok {
		return "", errors.New("sealed value failed authentication")
	}
	return string(plain), nil
}
