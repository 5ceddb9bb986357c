package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
)

// Store writes run artifacts under a single root directory
type Store struct {
	root string
}

// NewStore creates a store rooted at dir. Nothing touches disk until the
// first write.
func NewStore(dir string) *Store {
	return &Store{root: filepath.Clean(dir)}
}

// Root returns the store's root directory
func (s *Store) Root() string {
	return s.root
}

// Reset removes the whole store root. A missing root is not an error.
func (s *Store) Reset() error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("failed to reset %s: %w", s.root, err)
	}
	return nil
}

// EnsureDir creates rel (relative to the root) and every parent
func (s *Store) EnsureDir(rel string) error {
	dir, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", rel, err)
	}
	return nil
}

// Save writes data to relPath. Strings and byte slices are written as-is,
// structured values as indented JSON.
func (s *Store) Save(relPath string, data any) error {
	content, err := encode(data)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", relPath, err)
	}

	path, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return nil
}

// Load decodes the JSON file at relPath into v
func (s *Store) Load(relPath string, v any) error {
	path, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", relPath, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", relPath, err)
	}
	return nil
}

// Exists reports whether relPath exists under the root
func (s *Store) Exists(relPath string) bool {
	path, err := s.resolve(relPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// ListDirs returns the names of the root's immediate subdirectories, sorted.
// A missing root yields an empty list.
func (s *Store) ListDirs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (s *Store) resolve(rel string) (string, error) {
	path := filepath.Join(s.root, rel)
	prefix := s.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if path != s.root && !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, rel)
	}
	return path, nil
}

func encode(data any) ([]byte, error) {
	switch v := data.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case json.Marshaler:
		return marshalIndent(v)
	}

	if !isStructured(data) {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedData, data)
	}
	return marshalIndent(data)
}

func marshalIndent(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}
	return append(out, '\n'), nil
}

func isStructured(data any) bool {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		return true
	}
	return false
}
