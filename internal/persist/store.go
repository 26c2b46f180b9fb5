package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"
)

// ChangeFunc receives documents written to the state directory by another process.
type ChangeFunc func(key string, raw json.RawMessage)

// Store persists JSON documents by key, one file per key.
type Store struct {
	dir string
	log pslog.Logger

	mu      sync.Mutex
	cache   map[string]json.RawMessage
	written map[string][]byte
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{
		dir:     dir,
		log:     logger,
		cache:   make(map[string]json.RawMessage),
		written: make(map[string][]byte),
	}, nil
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads a document. Reads are served from cache once a key was seen.
func (s *Store) Load(key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw, ok := s.cache[key]; ok {
		return cloneRaw(raw), true, nil
	}
	data, err := os.ReadFile(s.pathForKey(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "key", key)
			}
			return nil, false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "key", key, "err", err)
		}
		return nil, false, err
	}
	s.cache[key] = cloneRaw(data)
	if s.log != nil {
		s.log.Debug("state load ok", "key", key, "bytes", len(data))
	}
	return cloneRaw(data), true, nil
}

// Save writes a document atomically and updates the cache.
func (s *Store) Save(key string, raw json.RawMessage) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "key", key, "err", err)
		}
		return err
	}
	data := pretty.Bytes()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeFile(s.pathForKey(key), data); err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "key", key, "err", err)
		}
		return err
	}
	s.cache[key] = cloneRaw(data)
	s.written[key] = cloneRaw(data)
	if s.log != nil {
		s.log.Trace("state save ok", "key", key, "bytes", len(data))
	}
	return nil
}

func (s *Store) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Watch reports documents changed on disk by other writers until ctx ends.
// Writes made through this Store are not reported.
func (s *Store) Watch(ctx context.Context, fn ChangeFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return err
	}
	if s.log != nil {
		s.log.Debug("state watch started")
	}
	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				if s.log != nil {
					s.log.Debug("state watch stopped")
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				key, ok := keyForPath(ev.Name)
				if !ok {
					continue
				}
				raw, changed := s.reload(key)
				if changed && fn != nil {
					fn(key, raw)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if s.log != nil {
					s.log.Warn("state watch error", "err", err)
				}
			}
		}
	}()
	return nil
}

func (s *Store) reload(key string) (json.RawMessage, bool) {
	data, err := os.ReadFile(s.pathForKey(key))
	if err != nil {
		if s.log != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("state reload failed", "key", key, "err", err)
		}
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if bytes.Equal(data, s.written[key]) || bytes.Equal(data, s.cache[key]) {
		return nil, false
	}
	s.cache[key] = cloneRaw(data)
	if s.log != nil {
		s.log.Debug("state external change", "key", key, "bytes", len(data))
	}
	return cloneRaw(data), true
}

func (s *Store) pathForKey(key string) string {
	name := sanitize(key)
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

func keyForPath(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, ".json") {
		return "", false
	}
	return strings.TrimSuffix(base, ".json"), true
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}

func cloneRaw(raw []byte) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}
