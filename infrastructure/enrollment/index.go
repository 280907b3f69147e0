package enrollment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"facegate.humanid.io/entities"
)

var (
	ErrAlreadyRegistered = errors.New("username already registered")
	ErrNotFound          = errors.New("username not registered")
)

// Store persists the username → reference embedding mapping in a single JSON
// file. Every mutation is a load-modify-store under the store mutex followed
// by an atomic replace of the file, so concurrent enroll/delete calls cannot
// lose updates or leave a torn file behind.
type Store struct {
	mu   sync.RWMutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() (map[string]entities.IdentityRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]entities.IdentityRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read enrollment store: %w", err)
	}
	records := map[string]entities.IdentityRecord{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode enrollment store: %w", err)
	}
	return records, nil
}

func (s *Store) save(records map[string]entities.IdentityRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode enrollment store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".enrollments-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Enroll creates the record for record.Username. Fails with
// ErrAlreadyRegistered when a record exists; re-enrollment requires an
// explicit Delete first so a stored reference is never silently overwritten.
func (s *Store) Enroll(record entities.IdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := records[record.Username]; exists {
		return ErrAlreadyRegistered
	}
	records[record.Username] = record
	return s.save(records)
}

func (s *Store) Lookup(username string) (*entities.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	record, ok := records[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *Store) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := records[username]; !ok {
		return ErrNotFound
	}
	delete(records, username)
	return s.save(records)
}

func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	usernames := make([]string, 0, len(records))
	for username := range records {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)
	return usernames, nil
}
