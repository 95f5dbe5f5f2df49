// Package filestore implements domain.KV as a single JSON file with atomic
// writes, a rolling backup and a cross-process lock.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"bookstore/internal/domain"
)

// Store keeps every key of a KV in one JSON document.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

var _ domain.KV = (*Store)(nil)

// New returns a store backed by the file at path. The parent directory is
// created if needed; the file itself is created on first write.
func New(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{path: path, logger: logger}, nil
}

// Path returns the configured file path.
func (s *Store) Path() string {
	return s.path
}

// errCorrupt marks a state file that exists but does not parse.
var errCorrupt = errors.New("state file is corrupt")

// Get reads key from the current file contents, or from the backup when the
// file is corrupt.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, _, err := s.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := values[key]
	return slices.Clone(v), ok, nil
}

// Put sets key and rewrites the file.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.update(func(values map[string][]byte) {
		values[key] = slices.Clone(value)
	})
}

// Delete removes key and rewrites the file.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.update(func(values map[string][]byte) {
		delete(values, key)
	})
}

// load returns the stored map. When the file does not parse, damaged is
// true and the backup is returned instead; with no usable backup the error
// wraps errCorrupt.
func (s *Store) load() (values map[string][]byte, damaged bool, err error) {
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(s.path); statErr == nil {
			if mode := info.Mode().Perm(); mode&0o077 != 0 {
				s.logger.Warn("state file has too-open permissions, should be 0600",
					"path", s.path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	values, err = readValues(s.path, true)
	if !errors.Is(err, errCorrupt) {
		return values, false, err
	}
	backup, bakErr := readValues(s.path+".bak", false)
	if bakErr != nil {
		return nil, true, err
	}
	s.logger.Warn("state file is corrupt, reading backup", "path", s.path, "error", err)
	return backup, true, nil
}

func readValues(path string, missingOK bool) (map[string][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if missingOK && os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	values := map[string][]byte{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", filepath.Base(path), errCorrupt, err)
	}
	return values, nil
}

// update applies fn to the stored map under the in-process mutex and an
// flock on path+".lock", then writes the result atomically. A corrupt file
// is moved aside to path+".corrupt" and replaced, starting from the backup
// when one parses and from an empty map otherwise.
func (s *Store) update(fn func(map[string][]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	values, damaged, err := s.load()
	if errors.Is(err, errCorrupt) {
		s.logger.Warn("state file is corrupt and has no usable backup, starting empty", "path", s.path, "error", err)
		values, err = map[string][]byte{}, nil
	}
	if err != nil {
		return err
	}
	fn(values)

	if damaged {
		if renameErr := os.Rename(s.path, s.path+".corrupt"); renameErr != nil {
			s.logger.Warn("failed to move corrupt state file aside", "error", renameErr)
		}
	} else if current, readErr := os.ReadFile(s.path); readErr == nil {
		if writeErr := os.WriteFile(s.path+".bak", current, 0o600); writeErr != nil {
			s.logger.Warn("failed to create backup", "error", writeErr)
		}
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		return err
	}
	s.logger.Debug("state saved", "path", s.path, "keys", len(values))
	return nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it over
// the target path. On any error the temp file is removed.
func (s *Store) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
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
