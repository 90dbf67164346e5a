package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"riskradar/pkg/models"
)

type fileState struct {
	LastHeight uint64 `json:"last_height"`
	// Processed maps event id -> block height, so ids below the advancing
	// height can be swept.
	Processed map[string]uint64 `json:"processed"`
}

// FileStore is a file-backed checkpoint store. Every mutation rewrites the
// whole document through a tmp file and rename, so a crash mid-write leaves
// the previous state intact.
type FileStore struct {
	mu    sync.Mutex
	path  string
	state fileState
}

// NewFileStore opens or creates a file store at path.
func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	s := &FileStore{
		path:  path,
		state: fileState{Processed: make(map[string]uint64)},
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if len(b) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, &s.state); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	if s.state.Processed == nil {
		s.state.Processed = make(map[string]uint64)
	}
	return s, nil
}

// LastHeight returns the persisted height.
func (s *FileStore) LastHeight(ctx context.Context) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.LastHeight == 0 {
		return 0, false, nil
	}
	return s.state.LastHeight, true, nil
}

// SetLastHeight advances the checkpoint and sweeps processed ids below the
// new height; heights are strictly increasing so only the current block's
// ids are still needed.
func (s *FileStore) SetLastHeight(ctx context.Context, height uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	s.state.LastHeight = height
	swept := make(map[string]uint64, len(s.state.Processed))
	for id, h := range s.state.Processed {
		if h >= height {
			swept[id] = h
		}
	}
	s.state.Processed = swept

	if err := s.persistLocked(); err != nil {
		s.state = prev
		return err
	}
	return nil
}

// HasProcessed reports whether the event id was already handled.
func (s *FileStore) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.Processed[eventID]
	return ok, nil
}

// MarkProcessed records the event id durably before the pipeline runs.
func (s *FileStore) MarkProcessed(ctx context.Context, dep models.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Processed[dep.EventID]; ok {
		return nil
	}
	s.state.Processed[dep.EventID] = dep.BlockHeight
	if err := s.persistLocked(); err != nil {
		delete(s.state.Processed, dep.EventID)
		return err
	}
	return nil
}

// Close is a no-op; every mutation is already durable.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) persistLocked() error {
	b, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}
