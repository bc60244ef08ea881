package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"titleCountdown/internal/domain"
)

// Store keeps the bearer token in a single JSON file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Save overwrites the file with {"access_token": token}.
func (s *Store) Save(token string) error {
	if s.path == "" {
		return fmt.Errorf("tokenfile: empty path")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("tokenfile: creating dir: %w", err)
	}

	raw, err := json.Marshal(domain.Token{AccessToken: token})
	if err != nil {
		return fmt.Errorf("tokenfile: encode: %w", err)
	}

	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("tokenfile: write: %w", err)
	}

	return nil
}

// Load returns the stored token, or "" when nothing was saved yet.
func (s *Store) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("tokenfile: read: %w", err)
	}

	var tok domain.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("tokenfile: decode %s: %w", s.path, err)
	}

	return strings.TrimSpace(tok.AccessToken), nil
}

var _ domain.TokenRepository = (*Store)(nil)
