package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// DefaultStateFile is where the file backend keeps the state
const DefaultStateFile = "./data/sync-state.json"

const lockRetryDelay = 50 * time.Millisecond

type fileStateService struct {
	path string
	// mu serializes goroutines; flock only excludes other processes
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStateService creates a Service storing the state as JSON at path.
// Writes go through a temporary file and a rename, and read-modify-write
// cycles hold an exclusive lock on path+".lock" so concurrent processes
// cannot interleave.
func NewFileStateService(path string) Service {
	return &fileStateService{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (f *fileStateService) Load(_ context.Context) (*SyncState, error) {
	return f.read()
}

func (f *fileStateService) Save(ctx context.Context, s *SyncState) error {
	unlock, err := f.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return f.write(s)
}

func (f *fileStateService) Update(ctx context.Context, fn func(s *SyncState) bool) (bool, error) {
	unlock, err := f.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	s, err := f.read()
	if err != nil {
		return false, err
	}
	if !fn(s) {
		return false, nil
	}
	if err := f.write(s); err != nil {
		return false, err
	}
	return true, nil
}

// acquire takes the in-process and cross-process locks, waiting on the
// latter until ctx is done.
func (f *fileStateService) acquire(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	f.mu.Lock()
	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		f.mu.Unlock()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrStateLocked, f.lock.Path())
		}
		return nil, fmt.Errorf("failed to lock state file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrStateLocked, f.lock.Path())
	}
	return func() {
		_ = f.lock.Unlock()
		f.mu.Unlock()
	}, nil
}

func (f *fileStateService) read() (*SyncState, error) {
	// #nosec G304 -- path comes from configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var s SyncState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state file %s: %w", f.path, err)
	}
	return &s, nil
}

func (f *fileStateService) write(s *SyncState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}
