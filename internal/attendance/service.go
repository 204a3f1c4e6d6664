package attendance

import (
	"context"
	"strings"
)

// Service coordinates review operations on stored attendees.
type Service struct {
	repo      Repository
	validator *Validator
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, v *Validator) *Service {
	if v == nil {
		v = NewValidator()
	}
	return &Service{repo: repo, validator: v}
}

// List returns the records matching a search query or a status filter. A
// non-empty query wins over the status, as the review screen sends one or
// the other.
func (s *Service) List(ctx context.Context, query string, status Status) ([]Record, error) {
	switch {
	case strings.TrimSpace(query) != "":
		return s.repo.Search(ctx, query)
	case status != "" && status != StatusAll:
		return s.repo.ByStatus(ctx, status)
	default:
		return s.repo.All(ctx)
	}
}

// Get returns the record or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec == nil {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

// Update merges patch onto the stored record and re-validates the result.
// A rejected edit returns *ValidationError and leaves the record unchanged;
// an accepted edit clears any earlier validation errors.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (Record, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}

	merged := current.Clone()
	patch.Apply(&merged)
	if msgs := s.validator.Validate(merged.Fields); len(msgs) > 0 {
		return Record{}, &ValidationError{Messages: msgs}
	}

	clean := false
	patch.HasErrors = &clean
	patch.ErrorMessages = &[]string{}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Record{}, err
	}
	if updated == nil {
		return Record{}, ErrNotFound
	}
	return *updated, nil
}

// Delete removes a record or returns ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Statistics summarizes the whole store.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return Statistics{}, err
	}
	return Summarize(all), nil
}

// Exportable returns the records that belong in the cleaned export.
func (s *Service) Exportable(ctx context.Context) ([]Record, error) {
	return s.repo.ByStatus(ctx, StatusValid)
}

// Files lists ingest descriptors, newest first.
func (s *Service) Files(ctx context.Context) ([]FileDescriptor, error) {
	return s.repo.ListFiles(ctx)
}

// File returns one descriptor or ErrNotFound.
func (s *Service) File(ctx context.Context, id string) (FileDescriptor, error) {
	f, err := s.repo.GetFile(ctx, id)
	if err != nil {
		return FileDescriptor{}, err
	}
	if f == nil {
		return FileDescriptor{}, ErrNotFound
	}
	return *f, nil
}

// PurgeFile clears the records of an ingest. The descriptor must exist.
func (s *Service) PurgeFile(ctx context.Context, id string) error {
	if _, err := s.File(ctx, id); err != nil {
		return err
	}
	return s.repo.PurgeByFile(ctx, id)
}

// Healthy reports whether the repository is reachable.
func (s *Service) Healthy(ctx context.Context) bool {
	return s.repo.Ping(ctx) == nil
}
