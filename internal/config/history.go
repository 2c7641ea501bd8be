package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

const (
	// HistoryFileName is the history file kept in the destination root.
	HistoryFileName = "run_history.json"
	// MaxHistoryEntries bounds the run history file.
	MaxHistoryEntries = 100
)

// HistoryStore keeps the run history of one destination.
type HistoryStore struct {
	filePath string
}

func NewHistoryStore(filePath string) *HistoryStore {
	return &HistoryStore{filePath: filePath}
}

// Load returns an empty history if the file doesn't exist.
func (s *HistoryStore) Load() (*types.RunHistory, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.RunHistory{Entries: []types.RunHistoryEntry{}}, nil
		}
		return nil, fmt.Errorf("failed to read run history file: %w", err)
	}

	var history types.RunHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run history: %w", err)
	}

	return &history, nil
}

func (s *HistoryStore) Save(history *types.RunHistory) error {
	history.UpdatedAt = time.Now()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write run history file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename run history file: %w", err)
	}

	return nil
}

// Add prepends entry and keeps the newest MaxHistoryEntries.
func (s *HistoryStore) Add(entry types.RunHistoryEntry) error {
	history, err := s.Load()
	if err != nil {
		return fmt.Errorf("failed to load run history: %w", err)
	}

	history.Entries = append([]types.RunHistoryEntry{entry}, history.Entries...)
	if len(history.Entries) > MaxHistoryEntries {
		history.Entries = history.Entries[:MaxHistoryEntries]
	}

	if err := s.Save(history); err != nil {
		return fmt.Errorf("failed to save run history: %w", err)
	}

	return nil
}
