// Package sessionindex maintains the single-file session metadata map
// (sessions.json), with an in-memory cache invalidated by the file's
// last-modified time.
package sessionindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/myclaw-dev/myclaw/internal/sessionkey"
	"github.com/myclaw-dev/myclaw/internal/storage"
	"github.com/myclaw-dev/myclaw/pkg/types"
	"github.com/oklog/ulid/v2"
)

const indexFileName = "sessions.json"

// Index is a single-file, cached session-key to SessionEntry map.
type Index struct {
	mu          sync.Mutex
	sessionsDir string
	lock        *storage.FileLock

	cached   map[string]types.SessionEntry
	cachedAt time.Time
	hasCache bool
}

// New creates an index rooted at sessionsDir.
func New(sessionsDir string) *Index {
	path := filepath.Join(sessionsDir, indexFileName)
	return &Index{
		sessionsDir: sessionsDir,
		lock:        storage.NewFileLock(path),
	}
}

func (idx *Index) path() string {
	return filepath.Join(idx.sessionsDir, indexFileName)
}

// Load returns the current session map. If the cached copy is still
// fresh (the file's mtime has not advanced), it returns a defensive
// copy of the cache; otherwise it reparses the file. A missing file
// yields an empty map. A corrupt file is preserved as
// sessions.json.bak.<ts> and an empty map is returned.
func (idx *Index) Load() (map[string]types.SessionEntry, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.loadLocked()
}

func (idx *Index) loadLocked() (map[string]types.SessionEntry, error) {
	path := idx.path()
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			idx.cached = map[string]types.SessionEntry{}
			idx.hasCache = true
			return copyMap(idx.cached), nil
		}
		return nil, fmt.Errorf("sessionindex: stat: %w", err)
	}

	if idx.hasCache && info.ModTime().Equal(idx.cachedAt) {
		return copyMap(idx.cached), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sessionindex: read: %w", err)
	}

	var m map[string]types.SessionEntry
	if err := json.Unmarshal(data, &m); err != nil {
		backup := fmt.Sprintf("%s.bak.%d", path, time.Now().UnixNano())
		_ = os.Rename(path, backup)
		idx.cached = map[string]types.SessionEntry{}
		idx.hasCache = true
		idx.cachedAt = time.Time{}
		return copyMap(idx.cached), nil
	}
	if m == nil {
		m = map[string]types.SessionEntry{}
	}

	idx.cached = m
	idx.cachedAt = info.ModTime()
	idx.hasCache = true
	return copyMap(idx.cached), nil
}

// Save serialises m to disk, pretty-printed, and refreshes the cache.
func (idx *Index) Save(m map[string]types.SessionEntry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.saveLocked(m)
}

func (idx *Index) saveLocked(m map[string]types.SessionEntry) error {
	if err := os.MkdirAll(idx.sessionsDir, 0o755); err != nil {
		return fmt.Errorf("sessionindex: mkdir: %w", err)
	}

	if err := idx.lock.Lock(); err != nil {
		return fmt.Errorf("sessionindex: lock: %w", err)
	}
	defer idx.lock.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionindex: marshal: %w", err)
	}

	path := idx.path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("sessionindex: write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("sessionindex: rename: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("sessionindex: stat after save: %w", err)
	}

	idx.cached = copyMap(m)
	idx.cachedAt = info.ModTime()
	idx.hasCache = true
	return nil
}

// Update loads the map bypassing the cache, applies mutator to a
// mutable copy, and saves the result.
func (idx *Index) Update(mutator func(m map[string]types.SessionEntry)) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.hasCache = false
	m, err := idx.loadLocked()
	if err != nil {
		return err
	}
	mutator(m)
	return idx.saveLocked(m)
}

// UpsertMeta merges patch into the entry for key, creating it with a
// fresh identifier and derived filename if absent, and refreshes
// updatedAt. It returns the resulting entry.
func (idx *Index) UpsertMeta(key string, patch types.SessionEntry) (types.SessionEntry, error) {
	var result types.SessionEntry
	err := idx.Update(func(m map[string]types.SessionEntry) {
		entry, ok := m[key]
		if !ok {
			entry = types.SessionEntry{
				SessionID:   ulid.Make().String(),
				SessionFile: sessionFileFor(key),
			}
		}
		entry = mergeEntry(entry, patch)
		entry.UpdatedAt = time.Now().UnixMilli()
		m[key] = entry
		result = entry
	})
	return result, err
}

// Delete removes key from the index, reporting whether it was present.
func (idx *Index) Delete(key string) (bool, error) {
	var removed bool
	err := idx.Update(func(m map[string]types.SessionEntry) {
		if _, ok := m[key]; ok {
			delete(m, key)
			removed = true
		}
	})
	return removed, err
}

// List returns all session keys currently in the index.
func (idx *Index) List() ([]string, error) {
	m, err := idx.Load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys, nil
}

// Prune removes entries whose UpdatedAt is older than now-maxAgeMs,
// returning the count removed.
func (idx *Index) Prune(maxAgeMs int64) (int, error) {
	cutoff := time.Now().UnixMilli() - maxAgeMs
	var count int
	err := idx.Update(func(m map[string]types.SessionEntry) {
		for k, v := range m {
			if v.UpdatedAt < cutoff {
				delete(m, k)
				count++
			}
		}
	})
	return count, err
}

func sessionFileFor(key string) string {
	return sessionkey.ToSlug(key) + ".jsonl"
}

func mergeEntry(base, patch types.SessionEntry) types.SessionEntry {
	if patch.SessionFile != "" {
		base.SessionFile = patch.SessionFile
	}
	if patch.LastChannel != "" {
		base.LastChannel = patch.LastChannel
	}
	if patch.LastTo != "" {
		base.LastTo = patch.LastTo
	}
	if patch.ChatType != "" {
		base.ChatType = patch.ChatType
	}
	if patch.Model != "" {
		base.Model = patch.Model
	}
	if patch.TotalTokens != 0 {
		base.TotalTokens = patch.TotalTokens
	}
	if patch.Extra != nil {
		if base.Extra == nil {
			base.Extra = map[string]any{}
		}
		for k, v := range patch.Extra {
			base.Extra[k] = v
		}
	}
	return base
}

func copyMap(m map[string]types.SessionEntry) map[string]types.SessionEntry {
	out := make(map[string]types.SessionEntry, len(m))
	for k, v := range m {
		entry := v
		if v.Extra != nil {
			entry.Extra = make(map[string]any, len(v.Extra))
			for ek, ev := range v.Extra {
				entry.Extra[ek] = ev
			}
		}
		out[k] = entry
	}
	return out
}
