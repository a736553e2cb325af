package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// SecretsStore keeps the sync token under the "sync" key of secrets.yaml,
// leaving the provider keys stored next to it untouched.
type SecretsStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewSecretsStore creates a store backed by the file at path.
func NewSecretsStore(path string) *SecretsStore {
	return &SecretsStore{path: path, now: time.Now}
}

// HasCredential reports whether a usable token is stored.
func (s *SecretsStore) HasCredential() bool {
	_, err := s.Credential()
	return err == nil
}

// Credential returns the stored token. A missing or expired token yields
// ErrNoCredential.
func (s *SecretsStore) Credential() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", err
	}

	section, _ := doc["sync"].(map[string]any)
	token, _ := section["token"].(string)
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoCredential
	}
	if Expired(token, s.now()) {
		return "", fmt.Errorf("%w: %w", ErrNoCredential, ErrTokenExpired)
	}
	return token, nil
}

// Save stores token, replacing any previous one.
func (s *SecretsStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	section, _ := doc["sync"].(map[string]any)
	if section == nil {
		section = make(map[string]any)
	}
	section["token"] = strings.TrimSpace(token)
	doc["sync"] = section
	return s.write(doc)
}

// Clear removes the stored token. A signing key kept in the same section
// stays.
func (s *SecretsStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	section, _ := doc["sync"].(map[string]any)
	delete(section, "token")
	if len(section) == 0 {
		delete(doc, "sync")
	}
	return s.write(doc)
}

func (s *SecretsStore) read() (map[string]any, error) {
	doc := make(map[string]any)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse secrets: %w", err)
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	return doc, nil
}

func (s *SecretsStore) write(doc map[string]any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create secrets dir: %w", err)
	}
	// owner read/write only
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
