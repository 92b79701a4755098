// Package tokenstore persists OAuth tokens for the CLI, preferring the system
// keychain and falling back to a locked file in the config directory.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/weibokit/weibo/pkg/weibo/auth"
)

const (
	serviceName = "weibo"

	// FileName is the plaintext fallback file within the store directory.
	FileName = "tokens.json"
)

// ErrNotFound is returned when no token is stored under a key.
var ErrNotFound = errors.New("no stored token")

// Record is one stored authorization. Exactly one of Token or Bearer is set.
type Record struct {
	Provider     string            `json:"provider"`
	OAuthVersion int               `json:"oauth_version"`
	Token        *auth.Token       `json:"token,omitempty"`
	Bearer       *auth.BearerToken `json:"bearer,omitempty"`
	SavedAt      time.Time         `json:"saved_at"`
}

// Authorizer returns the credential to attach to calls, or nil when the
// record holds only a request token still awaiting approval.
func (r *Record) Authorizer() auth.Authorizer {
	switch {
	case r.Bearer != nil:
		return r.Bearer
	case r.Token.Verified():
		return r.Token
	default:
		return nil
	}
}

// Pending reports whether the record holds an unapproved request token.
func (r *Record) Pending() bool {
	return r.Token != nil && !r.Token.Verified()
}

// ExpiresAt returns when a bearer token expires. ok is false when the
// provider did not report a lifetime.
func (r *Record) ExpiresAt() (t time.Time, ok bool) {
	if r.Bearer == nil || r.Bearer.ExpiresIn <= 0 {
		return time.Time{}, false
	}
	return r.SavedAt.Add(time.Duration(r.Bearer.ExpiresIn) * time.Second), true
}

// Expired reports whether a bearer token has outlived its reported lifetime.
func (r *Record) Expired(now time.Time) bool {
	t, ok := r.ExpiresAt()
	return ok && !now.Before(t)
}

// Key returns the storage key for one application on one provider.
func Key(provider, appKey string) string {
	return fmt.Sprintf("weibo::%s::%s", provider, appKey)
}

// Store handles token storage, preferring system keychain.
type Store struct {
	useKeyring bool
	dir        string
}

// NewStore creates a token store. The keyring is probed once; when it is
// unavailable, or WEIBO_NO_KEYRING is set, tokens go to dir/tokens.json.
func NewStore(dir string) *Store {
	if os.Getenv("WEIBO_NO_KEYRING") != "" {
		return NewFileStore(dir)
	}

	probe := "weibo::probe"
	if err := keyring.Set(serviceName, probe, "probe"); err == nil {
		_ = keyring.Delete(serviceName, probe) // Best-effort cleanup
		return &Store{useKeyring: true, dir: dir}
	}
	fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, tokens stored in plaintext at %s\n",
		filepath.Join(dir, FileName))
	return NewFileStore(dir)
}

// NewFileStore creates a store that never touches the keyring.
func NewFileStore(dir string) *Store {
	return &Store{dir: dir}
}

// UsingKeyring returns true if the store is using the system keyring.
func (s *Store) UsingKeyring() bool {
	return s.useKeyring
}

// Path returns the fallback file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load retrieves the record stored under key.
func (s *Store) Load(key string) (*Record, error) {
	if s.useKeyring {
		return s.loadFromKeyring(key)
	}
	var rec *Record
	err := s.withLock(func() error {
		all, err := s.readAll()
		if err != nil {
			return err
		}
		r, ok := all[key]
		if !ok {
			return ErrNotFound
		}
		rec = r
		return nil
	})
	return rec, err
}

// Save stores rec under key, stamping SavedAt when unset.
func (s *Store) Save(key string, rec *Record) error {
	if rec.Token == nil && rec.Bearer == nil {
		return errors.New("record has no token")
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}
	if s.useKeyring {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return keyring.Set(serviceName, key, string(data))
	}
	return s.withLock(func() error {
		all, err := s.readAll()
		if err != nil {
			return err
		}
		all[key] = rec
		return s.writeAll(all)
	})
}

// Delete removes the record stored under key. Deleting a missing key
// returns ErrNotFound.
func (s *Store) Delete(key string) error {
	if s.useKeyring {
		if err := keyring.Delete(serviceName, key); err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		return nil
	}
	return s.withLock(func() error {
		all, err := s.readAll()
		if err != nil {
			return err
		}
		if _, ok := all[key]; !ok {
			return ErrNotFound
		}
		delete(all, key)
		return s.writeAll(all)
	})
}

func (s *Store) loadFromKeyring(key string) (*Record, error) {
	data, err := keyring.Get(serviceName, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("keyring: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("invalid stored token: %w", err)
	}
	return &rec, nil
}

// File fallback methods

func (s *Store) readAll() (map[string]*Record, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*Record), nil
		}
		return nil, err
	}

	var all map[string]*Record
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", s.Path(), err)
	}
	if all == nil {
		all = make(map[string]*Record)
	}
	return all, nil
}

func (s *Store) writeAll(all map[string]*Record) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(s.dir, "tokens-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	dest := s.Path()
	if err := os.Rename(tmpPath, dest); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(dest)
			return os.Rename(tmpPath, dest)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}
