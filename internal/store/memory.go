package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"webinar/internal/attendance"
)

var _ attendance.Repository = (*Memory)(nil)

// Memory is the process-lifetime repository. Records are copied on the way
// in and out, so callers never share slices with the store.
type Memory struct {
	mu      sync.RWMutex
	now     func() time.Time
	order   []string
	records map[string]attendance.Record
	files   map[string]attendance.FileDescriptor
}

// NewMemory creates an empty store. now stamps CreatedAt and UploadedAt;
// nil means time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:     now,
		records: make(map[string]attendance.Record),
		files:   make(map[string]attendance.FileDescriptor),
	}
}

// Get returns a copy of one attendee, or nil when absent.
func (m *Memory) Get(_ context.Context, id string) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

// GetByEmail returns the earliest inserted attendee with that email.
func (m *Memory) GetByEmail(_ context.Context, email string) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if rec := m.records[id]; rec.Email == email {
			out := rec.Clone()
			return &out, nil
		}
	}
	return nil, nil
}

// Insert stores a new attendee with a fresh id and timestamp.
func (m *Memory) Insert(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(rec), nil
}

// BulkInsert stores attendees in order under one lock.
func (m *Memory) BulkInsert(_ context.Context, recs []attendance.Record) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attendance.Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, m.insertLocked(rec))
	}
	return out, nil
}

func (m *Memory) insertLocked(rec attendance.Record) attendance.Record {
	rec = rec.Clone()
	rec.ID = uuid.NewString()
	rec.CreatedAt = m.now()
	if !rec.IsDuplicate {
		rec.DuplicateGroup = ""
	}
	rec.HasErrors = len(rec.ErrorMessages) > 0
	m.records[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return rec.Clone()
}

// Update merges patch onto a stored attendee.
func (m *Memory) Update(_ context.Context, id string, patch attendance.Patch) (*attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	rec = rec.Clone()
	patch.Apply(&rec)
	m.records[id] = rec
	out := rec.Clone()
	return &out, nil
}

// Delete removes one attendee and reports whether it existed.
func (m *Memory) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return false, nil
	}
	delete(m.records, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// All returns every attendee in review order.
func (m *Memory) All(_ context.Context) ([]attendance.Record, error) {
	m.mu.RLock()
	out := make([]attendance.Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id].Clone())
	}
	m.mu.RUnlock()
	attendance.SortForReview(out)
	return out, nil
}

// Search returns attendees matching query on the searchable columns.
func (m *Memory) Search(ctx context.Context, query string) ([]attendance.Record, error) {
	if query == "" {
		return []attendance.Record{}, nil
	}
	all, err := m.All(ctx)
	if err != nil {
		return nil, err
	}
	return attendance.Filter(all, func(r attendance.Record) bool {
		return attendance.MatchesQuery(r, query)
	}), nil
}

// ByStatus returns attendees in a status bucket.
func (m *Memory) ByStatus(ctx context.Context, status attendance.Status) ([]attendance.Record, error) {
	all, err := m.All(ctx)
	if err != nil {
		return nil, err
	}
	return attendance.Filter(all, status.Matches), nil
}

// PurgeByFile deletes every attendee.
func (m *Memory) PurgeByFile(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]attendance.Record)
	m.order = nil
	return nil
}

// CreateFile records an ingest descriptor.
func (m *Memory) CreateFile(_ context.Context, f attendance.FileDescriptor) (attendance.FileDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = uuid.NewString()
	f.UploadedAt = m.now()
	m.files[f.ID] = f
	return f, nil
}

// GetFile returns a descriptor by id, or nil when absent.
func (m *Memory) GetFile(_ context.Context, id string) (*attendance.FileDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// ListFiles returns descriptors newest first.
func (m *Memory) ListFiles(_ context.Context) ([]attendance.FileDescriptor, error) {
	m.mu.RLock()
	out := make([]attendance.FileDescriptor, 0, len(m.files))
	for _, f := range m.files {
		out = append(out, f)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }
