// Package integration composes the detector and policy engine into a
// periodic sync cycle and publishes the flagged-decisions artifact.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foodflow/foodflow/internal/policy"
)

// ErrNoArtifact signals that no cycle has published yet.
var ErrNoArtifact = errors.New("integration: no flagged artifact published")

const (
	flaggedKey  = "foodflow:flagged"
	lastSyncKey = "foodflow:last_sync"
)

// Artifact is the published flagged-decisions payload, fully replaced each
// successful cycle.
type Artifact struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Decisions   []policy.Decision `json:"decisions"`
}

// FlaggedStore persists the artifact to a file and mirrors it to Redis for
// cross-process readers. File replacement is atomic: a failed cycle can
// never leave a torn artifact behind.
type FlaggedStore struct {
	path   string
	cache  *redis.Client
	logger *slog.Logger

	mu       sync.RWMutex
	lastSync time.Time
}

// NewFlaggedStore constructs FlaggedStore. The Redis client is optional; a
// nil client disables mirroring. An existing artifact on disk seeds the
// last-sync timestamp so restarts do not report a cold store.
func NewFlaggedStore(path string, cache *redis.Client, logger *slog.Logger) *FlaggedStore {
	s := &FlaggedStore{path: path, cache: cache, logger: logger}
	if artifact, err := s.Load(); err == nil {
		s.lastSync = artifact.GeneratedAt
	}
	return s
}

// Publish atomically replaces the artifact and records the sync timestamp.
// The previous artifact stays intact if anything fails before the rename.
func (s *FlaggedStore) Publish(ctx context.Context, artifact Artifact) error {
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("integration: marshal artifact: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("integration: artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".flagged-*.json")
	if err != nil {
		return fmt.Errorf("integration: temp artifact: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("integration: write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("integration: close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("integration: replace artifact: %w", err)
	}
	s.lastSync = artifact.GeneratedAt

	s.mirror(ctx, payload, artifact.GeneratedAt)
	return nil
}

// mirror pushes the artifact into Redis. Mirroring is advisory: the file is
// the system of record, so a cache failure only logs.
func (s *FlaggedStore) mirror(ctx context.Context, payload []byte, syncedAt time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, flaggedKey, payload, 0).Err(); err != nil {
		s.logger.Warn("flagged cache mirror failed", slog.Any("error", err))
		return
	}
	if err := s.cache.Set(ctx, lastSyncKey, syncedAt.Format(time.RFC3339Nano), 0).Err(); err != nil {
		s.logger.Warn("last-sync cache mirror failed", slog.Any("error", err))
	}
}

// Load reads the current artifact from disk.
func (s *FlaggedStore) Load() (Artifact, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, ErrNoArtifact
		}
		return Artifact{}, fmt.Errorf("integration: read artifact: %w", err)
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return Artifact{}, fmt.Errorf("integration: parse artifact: %w", err)
	}
	return artifact, nil
}

// LastSync returns the timestamp of the last successful publish, or zero if
// none has happened yet.
func (s *FlaggedStore) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}
