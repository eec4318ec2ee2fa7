package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the authenticated session: an opaque token and the last
// user object returned by the server. State lives in a single JSON file and
// is re-read on every access, so a Clear is visible to any request issued
// after it completes.
type Store struct {
	mu   sync.Mutex
	path string
}

type state struct {
	Token string          `json:"token,omitempty"`
	User  json.RawMessage `json:"user,omitempty"`
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath places the session file under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "marketplace", "session.json"), nil
}

func (s *Store) load() state {
	var st state
	data, err := os.ReadFile(s.path)
	if err != nil {
		return st
	}
	// A corrupt file counts as no session, callers must not crash on it.
	if err := json.Unmarshal(data, &st); err != nil {
		return state{}
	}
	return st
}

func (s *Store) write(st state) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Save persists token and user, overwriting any prior session.
func (s *Store) Save(token string, user interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.write(state{Token: token, User: raw})
}

// Clear removes both the token and the cached user.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Token returns the stored token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().Token
}

func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// CurrentUser unmarshals the cached user into v. It reports false when no
// user is stored or the stored data is malformed.
func (s *Store) CurrentUser(v interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load()
	if len(st.User) == 0 {
		return false
	}
	return json.Unmarshal(st.User, v) == nil
}
