// Package auth implements the hashed-credential user store with a swappable
// persistence backend. The store is a single JSON object keyed by username;
// every mutation is a whole read-modify-write of that object.
package auth

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/levelwatch/levelwatch/internal/models"
)

// AdminUsername is the protected account that can never be removed, so the
// store cannot be locked out of administration.
const AdminUsername = "admin"

var (
	// ErrInvalidLogin is returned for any credential mismatch. It is
	// deliberately silent about which field was wrong.
	ErrInvalidLogin = errors.New("invalid username or password")

	// ErrProtectedUser rejects removal of the protected admin account.
	ErrProtectedUser = errors.New("the admin account cannot be removed")

	// ErrUserExists rejects adding a duplicate username.
	ErrUserExists = errors.New("user already exists")

	// ErrUnknownUser reports a mutation on a missing username.
	ErrUnknownUser = errors.New("unknown user")
)

// Record is the persisted form of one account.
type Record struct {
	PasswordHash string `json:"passwordHash"`
	Role         string `json:"role"`
}

// Backend persists the whole credential object.
type Backend interface {
	Load() (map[string]Record, error)
	Save(users map[string]Record) error
}

// Store manages user credentials over a backend. All operations are
// whole-object read-modify-write under one lock.
type Store struct {
	mu      sync.Mutex
	backend Backend
}

// NewStore creates a credential store over the given backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// EnsureAdmin creates the protected admin account with the given password if
// the store has no admin yet. An existing admin is left untouched.
func (s *Store) EnsureAdmin(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	if _, ok := users[AdminUsername]; ok {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	users[AdminUsername] = Record{PasswordHash: string(hash), Role: models.RoleAdmin}
	return s.backend.Save(users)
}

// Verify checks a username/password pair. Any mismatch yields ErrInvalidLogin.
func (s *Store) Verify(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	rec, ok := users[username]
	if !ok {
		// Burn a comparison anyway so a missing user costs the same as a
		// wrong password.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return ErrInvalidLogin
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return ErrInvalidLogin
	}
	return nil
}

// Role returns the role of an existing user.
func (s *Store) Role(username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.backend.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load users: %w", err)
	}
	rec, ok := users[username]
	if !ok {
		return "", ErrUnknownUser
	}
	return rec.Role, nil
}

// AddUser creates an account with a freshly hashed password.
func (s *Store) AddUser(username, password, role string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	if role != models.RoleAdmin && role != models.RoleUser {
		return fmt.Errorf("role must be %q or %q", models.RoleAdmin, models.RoleUser)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	if _, ok := users[username]; ok {
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	users[username] = Record{PasswordHash: string(hash), Role: role}
	return s.backend.Save(users)
}

// SetPassword replaces an existing user's password.
func (s *Store) SetPassword(username, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("password is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	rec, ok := users[username]
	if !ok {
		return ErrUnknownUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	rec.PasswordHash = string(hash)
	users[username] = rec
	return s.backend.Save(users)
}

// RemoveUser deletes an account. The protected admin account is always
// rejected.
func (s *Store) RemoveUser(username string) error {
	if username == AdminUsername {
		return ErrProtectedUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	if _, ok := users[username]; !ok {
		return ErrUnknownUser
	}
	delete(users, username)
	return s.backend.Save(users)
}

// ListUsers returns usernames and roles sorted by username. Hashes are never
// exposed.
func (s *Store) ListUsers() ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	list := make([]models.User, 0, len(users))
	for username, rec := range users {
		list = append(list, models.User{Username: username, Role: rec.Role})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })
	return list, nil
}
