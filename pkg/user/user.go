// Package user implements a JSON-file backed account store with bcrypt
// password hashes.
package user

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// User is a single account.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

// Store manages user persistence. The on-disk format is a plain
// username -> user map so the file stays hand-editable.
type Store struct {
	mu       sync.RWMutex
	filePath string
	Users    map[string]*User
}

// NewStore creates a store backed by the given file path, loading existing
// users if the file exists.
func NewStore(path string) (*Store, error) {
	s := &Store{
		filePath: path,
		Users:    make(map[string]*User),
	}

	if err := s.load(); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.Users)
}

// Save persists the users to disk, creating the parent directory if needed.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s.Users, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Add creates a new user. It fails if the username is already taken.
// The caller is responsible for calling Save.
func (s *Store) Add(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.Users[username]; exists {
		return fmt.Errorf("user %s already exists", username)
	}
	return s.put(username, password)
}

// Set creates or replaces a user. Used to register the bootstrap account
// from configuration at startup.
func (s *Store) Set(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(username, password)
}

// put must be called with s.mu held.
func (s *Store) put(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.Users[username] = &User{
		Username:     username,
		PasswordHash: string(hash),
	}
	return nil
}

// Delete removes a user. Deleting an unknown user is a no-op.
func (s *Store) Delete(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Users, username)
}

// Authenticate verifies the password for a user.
func (s *Store) Authenticate(username, password string) bool {
	s.mu.RLock()
	u, ok := s.Users[username]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// List returns all usernames.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.Users))
	for name := range s.Users {
		names = append(names, name)
	}
	return names
}

// Len reports the number of accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Users)
}
