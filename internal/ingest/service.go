package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"webinar/internal/attendance"
	"webinar/internal/metrics"
	"webinar/internal/queue"
	"webinar/internal/sheet"
)

// Options tune one Service. Zero values take the defaults noted per field.
type Options struct {
	MaxBytes    int64         // 10 MiB
	Timeout     time.Duration // 60s, covers reading and decoding
	RowBatch    int           // 100
	InsertBatch int           // 50
	InsertDelay time.Duration // none
	ErrorLimit  int           // 50
}

func (o Options) withDefaults() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = 10 << 20
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.InsertBatch <= 0 {
		o.InsertBatch = 50
	}
	if o.ErrorLimit <= 0 {
		o.ErrorLimit = 50
	}
	return o
}

// Publisher receives an event after each stored ingest.
type Publisher interface {
	Publish(ctx context.Context, evt queue.Event) error
}

// Response is returned to the uploader.
type Response struct {
	FileID     string                `json:"fileId"`
	Statistics attendance.Statistics `json:"statistics"`
	Errors     []ErrorEntry          `json:"errors"`
	Message    string                `json:"message"`
}

// Service runs uploads through the pipeline into a repository.
type Service struct {
	repo     attendance.Repository
	reader   sheet.Reader
	pipeline *Pipeline
	pub      Publisher
	opts     Options
	log      *slog.Logger
}

// NewService wires an orchestrator. pub may be nil.
func NewService(repo attendance.Repository, reader sheet.Reader, v *attendance.Validator, pub Publisher, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()
	return &Service{
		repo:     repo,
		reader:   reader,
		pipeline: NewPipeline(v, opts.RowBatch, opts.ErrorLimit, log),
		pub:      pub,
		opts:     opts,
		log:      log,
	}
}

// MaxBytes is the configured upload cap.
func (s *Service) MaxBytes() int64 { return s.opts.MaxBytes }

// Ingest stores every row of an uploaded report and records its descriptor.
// A file exactly at the cap is accepted.
func (s *Service) Ingest(ctx context.Context, name string, data []byte) (resp Response, err error) {
	start := time.Now()
	log := s.log.With("file", name, "size", len(data))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = Classify(err).String()
			log.Warn("ingest failed", "kind", outcome, "err", err)
		}
		metrics.Ingests.WithLabelValues(outcome).Inc()
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	size := int64(len(data))
	if size > s.opts.MaxBytes {
		return Response{}, &TooLargeError{Size: size, Max: s.opts.MaxBytes}
	}

	res, err := s.decode(ctx, name, data)
	if err != nil {
		return Response{}, err
	}
	present := 0
	for _, r := range res.Rows {
		if r.Present() {
			present++
		}
	}
	log.Info("sheet decoded", "header_row", res.HeaderRow, "language", res.Language,
		"rows", len(res.Rows), "present", present, "groups", res.Groups)

	file, err := s.repo.CreateFile(ctx, attendance.FileDescriptor{
		FileName:   name,
		FileSize:   size,
		Statistics: res.Stats,
	})
	if err != nil {
		return Response{}, &StorageError{Op: "create file", Err: err}
	}

	if err := s.store(ctx, res.Rows); err != nil {
		return Response{}, err
	}

	metrics.ObserveRows(res.Stats)
	s.publish(ctx, queue.Event{
		Type:       queue.TypeIngestCompleted,
		FileID:     file.ID,
		FileName:   name,
		Statistics: res.Stats,
		At:         file.UploadedAt,
	})
	log.Info("ingest stored", "file_id", file.ID, "total", res.Stats.Total, "valid", res.Stats.Valid,
		"duplicate", res.Stats.Duplicate, "error", res.Stats.Error)

	errs := res.Errors
	if errs == nil {
		errs = []ErrorEntry{}
	}
	return Response{
		FileID:     file.ID,
		Statistics: res.Stats,
		Errors:     errs,
		Message:    "تم معالجة " + strconv.Itoa(res.Stats.Total) + " سجل بنجاح",
	}, nil
}

type sheetResult struct {
	rows [][]any
	err  error
}

// decode reads and runs the pipeline within the time budget. The matrix is
// dropped as soon as the pipeline has scanned it.
func (s *Service) decode(ctx context.Context, name string, data []byte) (Result, error) {
	budget, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	done := make(chan sheetResult, 1)
	go func() {
		rows, err := s.reader.ReadSheet(budget, name, data)
		done <- sheetResult{rows: rows, err: err}
	}()

	var matrix [][]any
	select {
	case r := <-done:
		if r.err != nil {
			if timedOut(ctx, budget) {
				return Result{}, ErrTimeout
			}
			return Result{}, fmt.Errorf("read sheet: %w", r.err)
		}
		matrix = r.rows
	case <-budget.Done():
		if timedOut(ctx, budget) {
			return Result{}, ErrTimeout
		}
		return Result{}, ctx.Err()
	}

	res, err := s.pipeline.Run(budget, matrix)
	if err != nil && timedOut(ctx, budget) {
		return Result{}, ErrTimeout
	}
	return res, err
}

func timedOut(parent, budget context.Context) bool {
	return parent.Err() == nil && errors.Is(budget.Err(), context.DeadlineExceeded)
}

// store inserts rows in order, in batches with a pause between them. Rows
// stored before a failure stay stored.
func (s *Service) store(ctx context.Context, rows []attendance.Record) error {
	stored := 0
	for start := 0; start < len(rows); start += s.opts.InsertBatch {
		end := min(start+s.opts.InsertBatch, len(rows))
		if _, err := s.repo.BulkInsert(ctx, rows[start:end]); err != nil {
			return &StorageError{Op: "insert", Stored: stored, Err: err}
		}
		stored = end
		s.log.Debug("batch stored", "stored", stored, "total", len(rows))

		if end < len(rows) && s.opts.InsertDelay > 0 {
			select {
			case <-time.After(s.opts.InsertDelay):
			case <-ctx.Done():
				return &StorageError{Op: "insert", Stored: stored, Err: ctx.Err()}
			}
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, evt queue.Event) {
	if s.pub == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.pub.Publish(pctx, evt); err != nil {
		s.log.Warn("publish ingest event failed", "file_id", evt.FileID, "err", err)
	}
}
