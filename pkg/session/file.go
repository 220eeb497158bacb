package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileStore keeps one JSON document per session under a directory
type FileStore struct {
	dir        string
	writeLocks map[string]*sync.Mutex
	locksMu    sync.Mutex
}

// NewFileStore creates the sessions directory if needed.
// An empty dir defaults to ~/.agentengine/sessions.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".agentengine", "sessions")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	log.Info().Str("dir", dir).Msg("File session store initialized")

	return &FileStore{
		dir:        dir,
		writeLocks: make(map[string]*sync.Mutex),
	}, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+".json")
}

// writeLock serializes file replacement for one id. It does not order
// read-modify-write cycles across requests.
func (f *FileStore) writeLock(id string) *sync.Mutex {
	f.locksMu.Lock()
	defer f.locksMu.Unlock()

	if lock, exists := f.writeLocks[id]; exists {
		return lock
	}
	lock := &sync.Mutex{}
	f.writeLocks[id] = lock
	return lock
}

// Get implements Store
func (f *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", id, err)
	}
	return &s, nil
}

// Save implements Store. The file is replaced through a temp file and rename.
func (f *FileStore) Save(ctx context.Context, s *Session) error {
	if err := validateForSave(s); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	lock := f.writeLock(s.ID)
	lock.Lock()
	defer lock.Unlock()

	sessionPath := f.path(s.ID)
	tempPath := sessionPath + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, sessionPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	log.Debug().
		Str("session_id", s.ID).
		Int("turns", len(s.Turns)).
		Msg("Session saved")

	return nil
}

// Delete implements Store
func (f *FileStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	lock := f.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(f.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}

	f.locksMu.Lock()
	delete(f.writeLocks, id)
	f.locksMu.Unlock()

	log.Info().Str("session_id", id).Msg("Session deleted")
	return nil
}

// List implements Lister
func (f *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	out := []Summary{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		s, err := f.Get(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			log.Warn().Str("file", name).Err(err).Msg("Skipping unreadable session")
			continue
		}
		out = append(out, summarize(s))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
