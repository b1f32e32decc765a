package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenStore persists the session bearer token between agent runs, mirroring
// the client app's get/set/clear session contract. The queue itself never
// touches this file; the token is handed to it per processing run.
type TokenStore struct {
	path string
	mu   sync.Mutex
}

type tokenState struct {
	Token string `json:"token"`
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Get reads the stored token. A missing file resolves to an empty token.
func (s *TokenStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read session token: %w", err)
	}

	var state tokenState
	if err := json.Unmarshal(data, &state); err != nil {
		return "", fmt.Errorf("decode session token: %w", err)
	}
	return state.Token, nil
}

// Set persists the token with restricted permissions.
func (s *TokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure token directory: %w", err)
	}

	data, err := json.Marshal(tokenState{Token: token})
	if err != nil {
		return fmt.Errorf("encode session token: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session token: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an absent token is a no-op.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}
