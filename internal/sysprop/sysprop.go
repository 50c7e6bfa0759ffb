// Package sysprop provides a file-backed system property registry.
//
// Each property is a single file under the store directory whose content is
// the property value. The daemon reads persisted mode state from here at
// startup; external tooling (powerctl, platform scripts) owns the write side.
package sysprop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollInterval is the fallback re-check period for WaitFor, covering
// filesystems where fsnotify events are unreliable.
const pollInterval = time.Second

// Store is a directory-backed property registry.
type Store struct {
	dir string
}

// NewStore opens (creating if needed) a property store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create property directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// Get returns the value of key, or "" when the property is unset or
// unreadable.
func (s *Store) Get(key string) string {
	v, _ := s.Lookup(key)
	return v
}

// Lookup returns the value of key and whether it is set.
func (s *Store) Lookup(key string) (string, bool) {
	path, err := s.keyPath(key)
	if err != nil {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// Set writes a property value atomically (temp file + rename).
func (s *Store) Set(key, value string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write property: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename property file: %w", err)
	}
	return nil
}

// Unset removes a property. Removing an absent property is not an error.
func (s *Store) Unset(key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove property file: %w", err)
	}
	return nil
}

// Keys returns all set property keys in directory order.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read property directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		keys = append(keys, name)
	}
	return keys, nil
}

// WaitFor blocks until the property reaches the given value or the context
// is cancelled. It returns immediately when the value already matches.
func (s *Store) WaitFor(ctx context.Context, key, value string) error {
	if s.Get(key) == value {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Degrade to polling only
		return s.pollFor(ctx, key, value)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return s.pollFor(ctx, key, value)
	}

	// The property may have been set between the first check and the
	// watch registration.
	if s.Get(key) == value {
		return nil
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return s.pollFor(ctx, key, value)
			}
			if filepath.Base(event.Name) != key {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if s.Get(key) == value {
				return nil
			}

		case <-ticker.C:
			if s.Get(key) == value {
				return nil
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return s.pollFor(ctx, key, value)
			}
			// Watch errors are non-fatal; the ticker still covers us.
		}
	}
}

// pollFor is the watcherless WaitFor fallback.
func (s *Store) pollFor(ctx context.Context, key, value string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if s.Get(key) == value {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// keyPath maps a property key to its backing file, rejecting keys that
// would escape the store directory.
func (s *Store) keyPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\x00") || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid property key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}
