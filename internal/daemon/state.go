package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/1broseidon/steer/internal/identity"
)

// identityState is the on-disk form of the handle table.
type identityState struct {
	SavedAt  time.Time       `json:"saved_at"`
	Mappings []identity.Pair `json:"mappings"`
}

// StateStore persists handle mappings so a restarted daemon can still
// resolve handles it handed out earlier in the session.
type StateStore struct {
	path string
}

// NewStateStore creates a store backed by path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file location.
func (s *StateStore) Path() string { return s.path }

// Load adds the persisted mappings to table and returns how many were
// restored. A missing file restores nothing.
func (s *StateStore) Load(table *identity.Table) (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read identity state: %w", err)
	}

	var state identityState
	if err := json.Unmarshal(data, &state); err != nil {
		return 0, fmt.Errorf("failed to parse identity state: %w", err)
	}

	for _, p := range state.Mappings {
		table.AddMapping(p.A, p.B)
	}
	return len(state.Mappings), nil
}

// Save writes the current mappings of table.
func (s *StateStore) Save(table *identity.Table) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	data, err := json.MarshalIndent(identityState{
		SavedAt:  time.Now().UTC(),
		Mappings: table.Snapshot(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode identity state: %w", err)
	}

	if err := os.WriteFile(s.path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write identity state: %w", err)
	}
	return nil
}
