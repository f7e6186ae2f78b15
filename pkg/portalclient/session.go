package portalclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session keys as they appear in a SessionStore.
const (
	KeyToken       = "token"
	KeyRole        = "role"
	KeyUsername    = "username"
	KeyDisplayName = "display_name"
	KeyExpiresAt   = "expires_at"
)

// Session is the client-side view of a login. It is advisory: the server
// trusts only the token.
type Session struct {
	Token       string
	Role        string
	Username    string
	DisplayName string
	ExpiresAt   time.Time
}

// Expired reports whether the token's expiry has passed at now. A zero
// ExpiresAt never expires client-side.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s *Session) values() map[string]string {
	v := map[string]string{
		KeyToken:       s.Token,
		KeyRole:        s.Role,
		KeyUsername:    s.Username,
		KeyDisplayName: s.DisplayName,
	}
	if !s.ExpiresAt.IsZero() {
		v[KeyExpiresAt] = s.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return v
}

func sessionFrom(v map[string]string) (*Session, bool) {
	token := v[KeyToken]
	if token == "" {
		return nil, false
	}
	s := &Session{
		Token:       token,
		Role:        v[KeyRole],
		Username:    v[KeyUsername],
		DisplayName: v[KeyDisplayName],
	}
	if raw := v[KeyExpiresAt]; raw != "" {
		if at, err := time.Parse(time.RFC3339, raw); err == nil {
			s.ExpiresAt = at
		}
	}
	return s, true
}

// SessionStore is a small key-value store for session state.
type SessionStore interface {
	Get(key string) (string, bool, error)
	SetAll(values map[string]string) error
	Clear() error
}

// LoadSession reads the session held in store. It returns nil when no token
// is stored.
func LoadSession(store SessionStore) (*Session, error) {
	v := make(map[string]string, 5)
	for _, k := range []string{KeyToken, KeyRole, KeyUsername, KeyDisplayName, KeyExpiresAt} {
		val, ok, err := store.Get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			v[k] = val
		}
	}
	s, ok := sessionFrom(v)
	if !ok {
		return nil, nil
	}
	return s, nil
}

// MemoryStore keeps session state for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) SetAll(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
	return nil
}

// FileStore persists session state as a JSON object in a single file,
// readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStore) SetAll(values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read()
	if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = v
	}
	return f.write(current)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (f *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return values, nil
}

// write replaces the file atomically so a crash never leaves half a session.
func (f *FileStore) write(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}
