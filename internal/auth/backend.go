package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// FileBackend stores the credential object in a local JSON file.
type FileBackend struct {
	path string
}

// NewFileBackend creates a file backend at path, creating parent directories
// as needed.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create auth directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

// Load reads the whole store; a missing file is an empty store.
func (b *FileBackend) Load() (map[string]Record, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user file: %w", err)
	}

	var users map[string]Record
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse user file: %w", err)
	}
	if users == nil {
		users = map[string]Record{}
	}
	return users, nil
}

// Save writes the whole store atomically via a temp file rename.
func (b *FileBackend) Save(users map[string]Record) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write user file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("failed to replace user file: %w", err)
	}
	return nil
}

// RemoteBackend stores the credential object as a remote-hosted JSON blob,
// fetched and replaced wholesale over HTTP.
type RemoteBackend struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewRemoteBackend creates a remote backend. token, when set, is sent as a
// bearer credential on every request.
func NewRemoteBackend(url, token string, timeout time.Duration) *RemoteBackend {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteBackend{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Load fetches the whole store; 404 is an empty store.
func (b *RemoteBackend) Load() (map[string]Record, error) {
	req, err := http.NewRequest(http.MethodGet, b.url, nil)
	if err != nil {
		return nil, err
	}
	b.authorize(req)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user blob: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return map[string]Record{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching user blob", resp.StatusCode)
	}

	var users map[string]Record
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to parse user blob: %w", err)
	}
	if users == nil {
		users = map[string]Record{}
	}
	return users, nil
}

// Save replaces the whole remote blob.
func (b *RemoteBackend) Save(users map[string]Record) error {
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, b.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	b.authorize(req)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to store user blob: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d storing user blob", resp.StatusCode)
	}
	return nil
}

func (b *RemoteBackend) authorize(req *http.Request) {
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
}
