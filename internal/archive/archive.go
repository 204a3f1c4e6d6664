// Package archive snapshots the cleaned export after every completed ingest.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"webinar/internal/attendance"
	"webinar/internal/export"
	"webinar/internal/metrics"
	"webinar/internal/queue"
)

// Source yields the records an export contains.
type Source interface {
	Exportable(ctx context.Context) ([]attendance.Record, error)
}

// Archiver writes <dir>/<fileId>.xlsx for each ingest.completed event.
type Archiver struct {
	src Source
	dir string
	log *slog.Logger
}

// New creates an archiver writing into dir, which is created on demand.
func New(src Source, dir string, log *slog.Logger) *Archiver {
	if log == nil {
		log = slog.Default()
	}
	return &Archiver{src: src, dir: dir, log: log.With("component", "archiver")}
}

// Run consumes events until ctx ends or the queue closes. Failed snapshots
// are logged and skipped.
func (a *Archiver) Run(ctx context.Context, q queue.Queue) error {
	events, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	a.log.Info("archiver started", "dir", a.dir)
	for evt := range events {
		if evt.Type != queue.TypeIngestCompleted {
			continue
		}
		path, err := a.Handle(ctx, evt)
		if err != nil {
			metrics.Archives.WithLabelValues("error").Inc()
			a.log.Error("snapshot failed", "file_id", evt.FileID, "err", err)
			continue
		}
		metrics.Archives.WithLabelValues("ok").Inc()
		a.log.Info("snapshot written", "file_id", evt.FileID, "path", path)
	}
	a.log.Info("archiver stopped")
	return nil
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// Handle writes the snapshot for one event and returns its path.
func (a *Archiver) Handle(ctx context.Context, evt queue.Event) (string, error) {
	if !validID(evt.FileID) {
		return "", fmt.Errorf("archive: invalid file id %q", evt.FileID)
	}
	records, err := a.src.Exportable(ctx)
	if err != nil {
		return "", fmt.Errorf("load records: %w", err)
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(a.dir, evt.FileID+".*.tmp")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := export.Write(tmp, records); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	path := filepath.Join(a.dir, evt.FileID+".xlsx")
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Join(errors.New("archive: publish snapshot"), err)
	}
	return path, nil
}
