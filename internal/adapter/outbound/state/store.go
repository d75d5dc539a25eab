package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/reelgate/reelgate/internal/port/outbound"
)

// FileStore implements outbound.KeyValueStore on top of a single JSON file.
//
// Every mutation is a read-modify-write performed under an in-process mutex
// and a cross-process lock on path+".lock", so two CLI invocations sharing
// the same state file never lose each other's writes. Writes are atomic
// (write-tmp, fsync, rename) and the previous file is kept as path+".bak".
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileStore creates a FileStore for the given file path.
// The parent directory is created lazily on the first write.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Get returns the value stored under key.
func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := st.Values[key]
	if !ok {
		return "", outbound.ErrKeyNotFound
	}
	return v, nil
}

// Set stores value under key and persists the file.
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	return s.update(func(st *StateFile) bool {
		if cur, ok := st.Values[key]; ok && cur == value {
			return false
		}
		st.Values[key] = value
		return true
	})
}

// Delete removes keys and persists the file if anything changed.
func (s *FileStore) Delete(ctx context.Context, keys ...string) error {
	return s.update(func(st *StateFile) bool {
		changed := false
		for _, k := range keys {
			if _, ok := st.Values[k]; ok {
				delete(st.Values, k)
				changed = true
			}
		}
		return changed
	})
}

// Exists returns true if the state file exists on disk.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the configured file path.
func (s *FileStore) Path() string {
	return s.path
}

// update runs mutate on a freshly loaded state while holding both locks and
// saves the result when mutate reports a change.
func (s *FileStore) update(mutate func(*StateFile) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	lockPath := s.path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lf.Close() }()

	if err := lockFile(lf.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer unlockFile(lf.Fd()) //nolint:errcheck

	st, err := s.load()
	if err != nil {
		return err
	}
	if !mutate(st) {
		return nil
	}
	return s.save(st)
}

// load reads and parses the state file. A missing file is an empty state.
// Warns if the file is readable by group or others.
func (s *FileStore) load() (*StateFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyState(), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	// Unix permission bits are meaningless on Windows.
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(s.path); statErr == nil {
			mode := info.Mode().Perm()
			if mode&0077 != 0 {
				s.logger.Warn("state file has too-open permissions, should be 0600",
					"path", s.path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	var st StateFile
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if st.Values == nil {
		st.Values = map[string]string{}
	}
	return &st, nil
}

// save backs up the current file and atomically replaces it with st.
// Caller must hold both locks.
func (s *FileStore) save(st *StateFile) error {
	st.Version = stateVersion
	st.UpdatedAt = time.Now().UTC()

	if current, readErr := os.ReadFile(s.path); readErr == nil {
		if writeErr := os.WriteFile(s.path+".bak", current, 0600); writeErr != nil {
			s.logger.Warn("failed to create backup", "error", writeErr)
		}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		return err
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on state file", "error", err)
	}

	s.logger.Debug("state saved", "path", s.path, "keys", len(st.Values))
	return nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it
// over the target path. On any error the temp file is cleaned up.
func (s *FileStore) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to state: %w", err)
	}
	return nil
}

var _ outbound.KeyValueStore = (*FileStore)(nil)
