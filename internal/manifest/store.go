package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/steveyegge/workledger/internal/atomicfile"
)

const fileExt = ".json"

// Store keeps one manifest file per parent issue in a directory.
type Store struct {
	dir string
	log *slog.Logger
}

// NewStore returns a store rooted at dir. The directory is created on the
// first save. A nil logger discards.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{dir: dir, log: logger}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file that holds the manifest for epicKey.
func (s *Store) Path(epicKey string) (string, error) {
	if err := validateKey(epicKey); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, epicKey+fileExt), nil
}

// Load returns the manifest for epicKey, or nil when it is absent or cannot
// be read. Unreadable files are logged and otherwise treated as absent.
func (s *Store) Load(epicKey string) *Manifest {
	path, err := s.Path(epicKey)
	if err != nil {
		s.log.Warn("invalid manifest key", "key", epicKey, "error", err)
		return nil
	}
	data, err := os.ReadFile(path) // #nosec G304 - path built from validated key
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("failed to read manifest", "path", path, "error", err)
		}
		return nil
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		s.log.Warn("failed to parse manifest", "path", path, "error", err)
		return nil
	}
	if m.EpicKey == "" {
		m.EpicKey = epicKey
	}
	if m.Children == nil {
		m.Children = []StoryIntent{}
	}
	return &m
}

// Save atomically writes m. On error the previous file is left intact.
func (s *Store) Save(m *Manifest) error {
	if m == nil {
		return fmt.Errorf("save manifest: %w", ErrInvalidKey)
	}
	path, err := s.Path(m.EpicKey)
	if err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	out := m.Clone()
	if out.Children == nil {
		out.Children = []StoryIntent{}
	}
	if err := atomicfile.WriteJSON(path, out); err != nil {
		s.log.Error("failed to save manifest", "path", path, "error", err)
		return fmt.Errorf("save manifest %s: %w", m.EpicKey, err)
	}
	return nil
}

// Exists reports whether a manifest file exists for epicKey. It does not
// check that the file parses.
func (s *Store) Exists(epicKey string) bool {
	path, err := s.Path(epicKey)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// List returns the epic keys that have a manifest file, sorted. A missing
// directory yields an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		key := strings.TrimSuffix(name, fileExt)
		if validateKey(key) != nil {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

func validateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case key == "." || key == "..",
		strings.ContainsAny(key, `/\`),
		strings.ContainsRune(key, 0):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
