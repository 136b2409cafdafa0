package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// FileStore keeps assignments in an in-process map mirrored to a JSON file on
// every write. The mutex makes it safe inside one process; across processes
// the mirror is last-writer-wins, so this backend is for single-process local
// use only.
type FileStore struct {
	mu        sync.Mutex
	path      string
	currentID int64
	records   map[int64]*Assignment
}

// mirror is the on-disk layout.
type mirror struct {
	CurrentID   int64                 `json:"currentId"`
	Assignments map[string]Assignment `json:"assignments"`
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[int64]*Assignment),
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store open: %w", err)
	}
	var m mirror
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("file store parse: %w", err)
	}
	s.currentID = m.CurrentID
	for _, a := range m.Assignments {
		rec := a
		s.records[rec.ID] = &rec
	}
	return s, nil
}

// flush rewrites the mirror file; callers hold the mutex.
func (s *FileStore) flush() error {
	m := mirror{
		CurrentID:   s.currentID,
		Assignments: make(map[string]Assignment, len(s.records)),
	}
	for id, a := range s.records {
		m.Assignments[fmt.Sprintf("%d", id)] = *a
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

func (s *FileStore) Create(_ context.Context, a *Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentID++
	a.ID = s.currentID
	a.CreatedAt = time.Now().UTC()

	cp := *a
	s.records[a.ID] = &cp
	return s.flush()
}

func (s *FileStore) Get(_ context.Context, id, owner int64) (*Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if owner > 0 && a.UserID != owner {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *FileStore) List(_ context.Context, owner int64) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Assignment
	for _, a := range s.records {
		if owner > 0 && a.UserID != owner {
			continue
		}
		if owner == 0 && a.UserID != 0 {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *FileStore) PurgeTextEntries(_ context.Context, owner int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, a := range s.records {
		if a.FileName != "" {
			continue
		}
		if owner > 0 && a.UserID != owner {
			continue
		}
		delete(s.records, id)
		purged++
	}
	if purged == 0 {
		return 0, nil
	}
	return purged, s.flush()
}

func (s *FileStore) Close() error { return nil }
