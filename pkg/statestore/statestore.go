// Package statestore persists the checkpoint that drives incremental
// exports: the timestamp of the last fully successful run.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const fileName = "last_run.json"

// Store reads and writes the checkpoint file under a state directory.
type Store struct {
	dir string
	now func() time.Time
}

// New returns a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

type checkpoint struct {
	LastRun string `json:"last_run"`
}

// LastRun returns the recorded checkpoint timestamp, or "" when no
// checkpoint exists yet.
func (s *Store) LastRun() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, fileName))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read checkpoint: %w", err)
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return "", fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp.LastRun, nil
}

// WriteLastRun records an explicit checkpoint timestamp.
func (s *Store) WriteLastRun(value string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(checkpoint{LastRun: value}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, fileName), data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// WriteNow records the current UTC time as the checkpoint. Callers
// advance the checkpoint only after a run with zero failures.
func (s *Store) WriteNow() error {
	return s.WriteLastRun(s.now().UTC().Format(time.RFC3339))
}
