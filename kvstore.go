package sheetorm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// KVStore is the durable key-value store backing sequence counters
type KVStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore is a volatile KVStore. Counters kept here do not survive the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	return nil
}

// FileStore is a KVStore persisted as a flat YAML mapping. Every Set rewrites the
// file through a temporary file and a rename.
type FileStore struct {
	path string
	mu   sync.Mutex
	data map[string]string
}

// OpenFileStore loads path, which may not exist yet
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}
	if s.data == nil {
		s.data = make(map[string]string)
	}
	return s, nil
}

// Path returns the backing file path
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	return v, ok, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.data[key]
	s.data[key] = value
	if err := s.save(); err != nil {
		if existed {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Delete removes a key; deleting an absent key is not an error
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.save()
}

// Keys returns the stored keys in sorted order
func (s *FileStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *FileStore) save() error {
	raw, err := yaml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// KeyValueSchema is the two-column layout used by TableStore
var KeyValueSchema = Schema{
	"key":   StringCol(Named("key")).Key(),
	"value": StringCol(Named("value")),
}

// TableStore is a KVStore kept in a sheet with "key" and "value" header columns.
// Every call re-reads the table, so it tolerates edits made by hand in between.
type TableStore struct {
	table *Table
}

// NewTableStore wraps a table bound with KeyValueSchema (or a compatible schema
// declaring "key" and "value" properties)
func NewTableStore(table *Table) (*TableStore, error) {
	s := table.Schema()
	if _, ok := s["key"]; !ok {
		return nil, fmt.Errorf("%w: key/value table needs a 'key' property", ErrInvalidSchema)
	}
	if _, ok := s["value"]; !ok {
		return nil, fmt.Errorf("%w: key/value table needs a 'value' property", ErrInvalidSchema)
	}
	return &TableStore{table: table}, nil
}

func (s *TableStore) find(ctx context.Context, key string) ([]Entity, int, error) {
	items, err := s.table.Read(ctx)
	if err != nil {
		return nil, -1, err
	}
	for i, item := range items {
		if item.GetAsString("key", "") == key {
			return items, i, nil
		}
	}
	return items, -1, nil
}

func (s *TableStore) Get(ctx context.Context, key string) (string, bool, error) {
	items, idx, err := s.find(ctx, key)
	if err != nil || idx < 0 {
		return "", false, err
	}
	return items[idx].GetAsString("value", ""), true, nil
}

func (s *TableStore) Set(ctx context.Context, key, value string) error {
	_, idx, err := s.find(ctx, key)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return s.table.UpdateAt(ctx, []Entity{{"value": value}}, idx)
	}
	return s.table.Append(ctx, Entity{"key": key, "value": value})
}

// Has reports whether key is present
func (s *TableStore) Has(ctx context.Context, key string) (bool, error) {
	_, idx, err := s.find(ctx, key)
	return idx >= 0, err
}

// Delete removes key's row if present
func (s *TableStore) Delete(ctx context.Context, key string) error {
	_, idx, err := s.find(ctx, key)
	if err != nil || idx < 0 {
		return err
	}
	return s.table.DeleteAt(ctx, idx, 1)
}

// Entries returns all pairs; later duplicates win
func (s *TableStore) Entries(ctx context.Context) (map[string]string, error) {
	items, err := s.table.Read(ctx)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]string, len(items))
	for _, item := range items {
		entries[item.GetAsString("key", "")] = item.GetAsString("value", "")
	}
	return entries, nil
}

// Clear deletes every row of the table
func (s *TableStore) Clear(ctx context.Context) error {
	return s.table.DeleteAll(ctx)
}
