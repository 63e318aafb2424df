// Package session persists the login artifacts (access token and user record) next to
// the cart, under the same storage backend.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-storefront/internal/auth"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/storage"
)

const (
	TokenKey = "access_token"
	UserKey  = "user"
)

var (
	ErrNoSession  = errors.New("no active session")
	ErrNoClientID = errors.New("session requires a client id")
)

type Store struct {
	backend  storage.Backend
	tokenKey string
	userKey  string
	logger   *logger.Logger
}

// NewStore scopes the session keys by the client's cart id. There is no shared
// session: an empty id is ErrNoClientID.
func NewStore(backend storage.Backend, id string, log *logger.Logger) (*Store, error) {
	if id == "" {
		return nil, ErrNoClientID
	}
	return &Store{
		backend:  backend,
		tokenKey: TokenKey + ":" + id,
		userKey:  UserKey + ":" + id,
		logger:   log,
	}, nil
}

// Save stores the token and user from a successful login.
func (s *Store) Save(ctx context.Context, resp *models.LoginResponse) error {
	if resp == nil || resp.AccessToken == "" {
		return errors.New("login response has no access token")
	}

	if err := s.backend.Write(ctx, s.tokenKey, []byte(resp.AccessToken)); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	if resp.User != nil {
		raw, err := json.Marshal(resp.User)
		if err != nil {
			return fmt.Errorf("failed to encode user: %w", err)
		}
		if err := s.backend.Write(ctx, s.userKey, raw); err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}
	}

	s.logger.Info("AUTH", fmt.Sprintf("Session saved under %s", s.tokenKey))
	return nil
}

// Token returns the stored access token, or ErrNoSession.
func (s *Store) Token(ctx context.Context) (string, error) {
	raw, err := s.backend.Read(ctx, s.tokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	return string(raw), nil
}

// User returns the stored user record. A missing or unreadable record is nil, not an error.
func (s *Store) User(ctx context.Context) (*models.User, error) {
	raw, err := s.backend.Read(ctx, s.userKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		s.logger.Warn("AUTH", fmt.Sprintf("Ignoring unreadable user record %s: %v", s.userKey, err))
		return nil, nil
	}
	return &user, nil
}

// Claims decodes the stored token's claims.
func (s *Store) Claims(ctx context.Context) (*auth.Claims, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return auth.ParseClaims(token)
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.tokenKey); err != nil {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	if err := s.backend.Delete(ctx, s.userKey); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
