// Package auth manages the local user registry and password checks.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"pulseboard/api/internal/keys"
	"pulseboard/api/internal/kv"
	"pulseboard/api/internal/session"
	"pulseboard/api/internal/util"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingFields      = errors.New("name, email and password are required")
)

// User is one entry in the stored user registry. Pass holds a bcrypt
// hash, never the plaintext password.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Pass  string `json:"pass"`
}

// Service reads and writes the "users" registry and drives the session
// record on login/logout.
type Service struct {
	kv      *kv.Store
	session *session.Manager
}

func NewService(store *kv.Store, sess *session.Manager) *Service {
	return &Service{kv: store, session: sess}
}

func (s *Service) users(ctx context.Context) []User {
	users := []User{}
	s.kv.Get(ctx, keys.Users, &users)
	return users
}

// Register adds a new user. Emails are unique, compared case-insensitively.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return User{}, ErrMissingFields
	}

	users := s.users(ctx)
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return User{}, ErrEmailTaken
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:    util.NewID("user"),
		Name:  name,
		Email: email,
		Pass:  string(hash),
	}
	users = append(users, user)
	if !s.kv.Set(ctx, keys.Users, users) {
		return User{}, fmt.Errorf("persist user registry")
	}
	return user, nil
}

// Login verifies credentials and makes the user active. The same error
// is returned for unknown email and wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users(ctx) {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.Pass), []byte(password)) != nil {
			return User{}, ErrInvalidCredentials
		}
		if !s.session.SetActiveUser(ctx, u.ID) {
			return User{}, fmt.Errorf("persist session")
		}
		return u, nil
	}
	return User{}, ErrInvalidCredentials
}

// Logout clears the session record.
func (s *Service) Logout(ctx context.Context) {
	s.session.Clear(ctx)
}

// Lookup returns the registry entry for id.
func (s *Service) Lookup(ctx context.Context, id string) (User, bool) {
	for _, u := range s.users(ctx) {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}
