package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"webinar/internal/attendance"
	"webinar/internal/queue"
	"webinar/internal/sheet"
	"webinar/internal/store"
)

const happyCSV = "Webinar Report\nTopic,Review\nAttendee Details\n" +
	"حضر,اسم المستخدم,الاسم الأول,اسم العائلة,البريد الإلكتروني,وقت التسجيل\n" +
	"نعم,alice42,Alice,Hill,ALICE@x.io,44562\n" +
	"Yes,bob,Bob,Ng,bob@y.io,44563\n" +
	"نعم,alice42,Alice,Hill,alice@x.io,44565\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo attendance.Repository, reader sheet.Reader, pub Publisher, opts Options) *Service {
	if reader == nil {
		reader = sheet.Auto{}
	}
	return NewService(repo, reader, nil, pub, opts, quietLogger())
}

func TestIngestStoresRowsAndDescriptor(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory(nil)
	q := queue.NewInMemory(1)
	svc := newTestService(repo, nil, q, Options{InsertBatch: 2})

	resp, err := svc.Ingest(ctx, "report.csv", []byte(happyCSV))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	want := attendance.Statistics{Total: 3, Valid: 1, Duplicate: 2}
	if resp.Statistics != want {
		t.Fatalf("stats = %+v, want %+v", resp.Statistics, want)
	}
	if resp.Message != "تم معالجة 3 سجل بنجاح" {
		t.Fatalf("message = %q", resp.Message)
	}
	if resp.Errors == nil || len(resp.Errors) != 0 {
		t.Fatalf("errors = %#v, want empty list", resp.Errors)
	}

	all, _ := repo.All(ctx)
	if len(all) != 3 {
		t.Fatalf("stored = %d, want 3", len(all))
	}
	if all[0].DuplicateGroup != "duplicate-group-1" || all[1].DuplicateGroup != "duplicate-group-1" || all[2].UserName != "bob" {
		t.Fatalf("order = %q %q %q", all[0].DuplicateGroup, all[1].DuplicateGroup, all[2].UserName)
	}

	f, err := repo.GetFile(ctx, resp.FileID)
	if err != nil || f == nil {
		t.Fatalf("descriptor missing: %v", err)
	}
	if f.FileName != "report.csv" || f.FileSize != int64(len(happyCSV)) || f.Statistics != want {
		t.Fatalf("descriptor = %+v", f)
	}

	events, _ := q.Consume(ctx)
	select {
	case evt := <-events:
		if evt.Type != queue.TypeIngestCompleted || evt.FileID != resp.FileID || evt.Statistics != want {
			t.Fatalf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no ingest event published")
	}
}

func TestIngestSizeCap(t *testing.T) {
	data := []byte(happyCSV)
	repo := store.NewMemory(nil)

	atCap := newTestService(repo, nil, nil, Options{MaxBytes: int64(len(data))})
	if _, err := atCap.Ingest(context.Background(), "r.csv", data); err != nil {
		t.Fatalf("file at cap rejected: %v", err)
	}

	overCap := newTestService(repo, nil, nil, Options{MaxBytes: int64(len(data) - 1)})
	_, err := overCap.Ingest(context.Background(), "r.csv", data)
	var tooLarge *TooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("err = %v, want TooLargeError", err)
	}
	if tooLarge.Size != int64(len(data)) || tooLarge.Max != int64(len(data)-1) {
		t.Fatalf("sizes = %+v", tooLarge)
	}
	if Classify(err) != KindTooLarge {
		t.Fatalf("kind = %v", Classify(err))
	}
}

func TestIngestMissingSectionLeavesRepoUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory(nil)
	svc := newTestService(repo, nil, nil, Options{})

	_, err := svc.Ingest(ctx, "r.csv", []byte("a,b,c\n1,2,3\n"))
	if !errors.Is(err, ErrMissingSection) {
		t.Fatalf("err = %v, want ErrMissingSection", err)
	}
	all, _ := repo.All(ctx)
	files, _ := repo.ListFiles(ctx)
	if len(all) != 0 || len(files) != 0 {
		t.Fatalf("repo changed: %d records, %d files", len(all), len(files))
	}
}

type slowReader struct{ delay time.Duration }

func (r slowReader) ReadSheet(ctx context.Context, _ string, _ []byte) ([][]any, error) {
	select {
	case <-time.After(r.delay):
		return [][]any{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestIngestTimeout(t *testing.T) {
	svc := newTestService(store.NewMemory(nil), slowReader{delay: time.Second}, nil, Options{Timeout: 20 * time.Millisecond})
	_, err := svc.Ingest(context.Background(), "r.xlsx", []byte("x"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if Classify(err) != KindTimeout {
		t.Fatalf("kind = %v", Classify(err))
	}
}

// failingRepo accepts the first n rows, then fails every insert.
type failingRepo struct {
	*store.Memory
	accept int
}

func (r *failingRepo) BulkInsert(ctx context.Context, recs []attendance.Record) ([]attendance.Record, error) {
	if len(recs) > r.accept {
		return nil, errors.New("disk full")
	}
	r.accept -= len(recs)
	return r.Memory.BulkInsert(ctx, recs)
}

func TestIngestStorageFailureKeepsPartialInsert(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{Memory: store.NewMemory(nil), accept: 2}
	svc := newTestService(repo, nil, nil, Options{InsertBatch: 2})

	_, err := svc.Ingest(ctx, "r.csv", []byte(happyCSV))
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StorageError", err)
	}
	if se.Stored != 2 || Classify(err) != KindStorage {
		t.Fatalf("stored = %d, kind = %v", se.Stored, Classify(err))
	}
	all, _ := repo.All(ctx)
	if len(all) != 2 {
		t.Fatalf("kept = %d, want 2", len(all))
	}
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(context.Context, queue.Event) error { return errors.New("redis down") }

func TestIngestIgnoresPublishFailure(t *testing.T) {
	svc := newTestService(store.NewMemory(nil), nil, brokenPublisher{}, Options{})
	if _, err := svc.Ingest(context.Background(), "r.csv", []byte(happyCSV)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{&TooLargeError{Size: 2, Max: 1}, KindTooLarge},
		{ErrMissingSection, KindMissingSection},
		{ErrTimeout, KindTimeout},
		{context.DeadlineExceeded, KindTimeout},
		{&StorageError{Op: "insert", Err: errors.New("x")}, KindStorage},
		{errors.New("read sheet: i/o timeout"), KindTimeout},
		{errors.New("runtime: out of memory"), KindTooLarge},
		{errors.New("JavaScript heap exhausted"), KindTooLarge},
		{errors.New("zip: not a valid zip file"), KindUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
	if !strings.Contains(KindStorage.String(), "storage") {
		t.Fatalf("KindStorage = %q", KindStorage.String())
	}
}
