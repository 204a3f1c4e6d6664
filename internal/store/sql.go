package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"webinar/internal/attendance"
)

var _ attendance.Repository = (*Repository)(nil)

const attendeeColumns = `id, attended, user_name, first_name, last_name, email, registration_time,
	approval_status, join_time, leave_time, session_duration, is_guest, country, phone_number,
	is_duplicate, duplicate_group, has_errors, error_messages, created_at`

const fileColumns = `id, file_name, file_size, total_records, valid_records, duplicate_records, error_records, uploaded_at`

// Repository persists attendees in SQLite or Postgres.
type Repository struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

// NewRepository creates a repo over an opened DB. now stamps CreatedAt and
// UploadedAt; nil means time.Now.
func NewRepository(db *DB, now func() time.Time) *Repository {
	if now == nil {
		now = time.Now
	}
	return &Repository{db: db.Client, d: db.dialect, now: now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRecord(row rowScanner) (attendance.Record, error) {
	var (
		rec      attendance.Record
		duration sql.NullInt64
		group    sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Attended, &rec.UserName, &rec.FirstName, &rec.LastName, &rec.Email,
		&rec.RegistrationTime, &rec.ApprovalStatus, &rec.JoinTime, &rec.LeaveTime, &duration,
		&rec.IsGuest, &rec.Country, &rec.PhoneNumber, &rec.IsDuplicate, &group, &rec.HasErrors,
		messagesCol{d: r.d, msgs: &rec.ErrorMessages}, timeCol{d: r.d, t: &rec.CreatedAt})
	if err != nil {
		return attendance.Record{}, err
	}
	if duration.Valid {
		v := int(duration.Int64)
		rec.SessionDuration = &v
	}
	rec.DuplicateGroup = group.String
	return rec, nil
}

func (r *Repository) queryRecords(ctx context.Context, where string, args ...any) ([]attendance.Record, error) {
	query := `SELECT ` + attendeeColumns + ` FROM attendees`
	if where != "" {
		query += " WHERE " + where
	}
	query += ` ORDER BY CASE WHEN duplicate_group IS NULL THEN 1 ELSE 0 END, ` + r.d.groupOrder + `, created_at, seq`

	rows, err := r.db.QueryContext(ctx, r.d.bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []attendance.Record{}
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (r *Repository) getOne(ctx context.Context, where string, args ...any) (*attendance.Record, error) {
	row := r.db.QueryRowContext(ctx, r.d.bind(`SELECT `+attendeeColumns+` FROM attendees WHERE `+where+` ORDER BY seq LIMIT 1`), args...)
	rec, err := r.scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Get returns a single attendee by id.
func (r *Repository) Get(ctx context.Context, id string) (*attendance.Record, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByEmail returns the earliest stored attendee with that email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*attendance.Record, error) {
	return r.getOne(ctx, "email = ?", email)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) insert(ctx context.Context, ex execer, rec attendance.Record) (attendance.Record, error) {
	rec = rec.Clone()
	rec.ID = uuid.NewString()
	rec.CreatedAt = r.now().UTC()
	if !rec.IsDuplicate {
		rec.DuplicateGroup = ""
	}
	rec.HasErrors = len(rec.ErrorMessages) > 0

	msgs, err := r.d.messagesArg(rec.ErrorMessages)
	if err != nil {
		return attendance.Record{}, err
	}
	_, err = ex.ExecContext(ctx, r.d.bind(`
		INSERT INTO attendees (`+attendeeColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`), rec.ID, rec.Attended, rec.UserName, rec.FirstName, rec.LastName, rec.Email, rec.RegistrationTime,
		rec.ApprovalStatus, rec.JoinTime, rec.LeaveTime, nullInt(rec.SessionDuration), rec.IsGuest,
		rec.Country, rec.PhoneNumber, rec.IsDuplicate, nullString(rec.DuplicateGroup), rec.HasErrors,
		msgs, r.d.timeArg(rec.CreatedAt))
	if err != nil {
		return attendance.Record{}, fmt.Errorf("insert attendee: %w", err)
	}
	return rec, nil
}

// Insert writes a new attendee.
func (r *Repository) Insert(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	return r.insert(ctx, r.db, rec)
}

// BulkInsert writes all attendees in one transaction, in order.
func (r *Repository) BulkInsert(ctx context.Context, recs []attendance.Record) ([]attendance.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]attendance.Record, 0, len(recs))
	for _, rec := range recs {
		stored, err := r.insert(ctx, tx, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update merges patch onto a stored attendee.
func (r *Repository) Update(ctx context.Context, id string, patch attendance.Patch) (*attendance.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, r.d.bind(`SELECT `+attendeeColumns+` FROM attendees WHERE id = ?`), id)
	rec, err := r.scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	patch.Apply(&rec)

	msgs, err := r.d.messagesArg(rec.ErrorMessages)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, r.d.bind(`
		UPDATE attendees SET
			attended = ?, user_name = ?, first_name = ?, last_name = ?, email = ?,
			registration_time = ?, approval_status = ?, join_time = ?, leave_time = ?,
			session_duration = ?, is_guest = ?, country = ?, phone_number = ?,
			has_errors = ?, error_messages = ?
		WHERE id = ?
	`), rec.Attended, rec.UserName, rec.FirstName, rec.LastName, rec.Email,
		rec.RegistrationTime, rec.ApprovalStatus, rec.JoinTime, rec.LeaveTime,
		nullInt(rec.SessionDuration), rec.IsGuest, rec.Country, rec.PhoneNumber,
		rec.HasErrors, msgs, id)
	if err != nil {
		return nil, fmt.Errorf("update attendee: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes one attendee.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.d.bind(`DELETE FROM attendees WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// All returns every attendee in review order.
func (r *Repository) All(ctx context.Context) ([]attendance.Record, error) {
	return r.queryRecords(ctx, "")
}

// Search filters in Go so matching is identical across backends.
func (r *Repository) Search(ctx context.Context, query string) ([]attendance.Record, error) {
	if query == "" {
		return []attendance.Record{}, nil
	}
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	return attendance.Filter(all, func(rec attendance.Record) bool {
		return attendance.MatchesQuery(rec, query)
	}), nil
}

// ByStatus returns attendees in a status bucket.
func (r *Repository) ByStatus(ctx context.Context, status attendance.Status) ([]attendance.Record, error) {
	switch status {
	case attendance.StatusValid:
		return r.queryRecords(ctx, "has_errors = ? AND is_duplicate = ?", false, false)
	case attendance.StatusDuplicate:
		return r.queryRecords(ctx, "is_duplicate = ?", true)
	case attendance.StatusError:
		return r.queryRecords(ctx, "has_errors = ?", true)
	default:
		return r.All(ctx)
	}
}

// PurgeByFile deletes every attendee.
func (r *Repository) PurgeByFile(ctx context.Context, _ string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM attendees`)
	return err
}

// CreateFile records an ingest descriptor.
func (r *Repository) CreateFile(ctx context.Context, f attendance.FileDescriptor) (attendance.FileDescriptor, error) {
	f.ID = uuid.NewString()
	f.UploadedAt = r.now().UTC()
	_, err := r.db.ExecContext(ctx, r.d.bind(`
		INSERT INTO csv_files (`+fileColumns+`)
		VALUES (?,?,?,?,?,?,?,?)
	`), f.ID, f.FileName, f.FileSize, f.Total, f.Valid, f.Duplicate, f.Error, r.d.timeArg(f.UploadedAt))
	if err != nil {
		return attendance.FileDescriptor{}, fmt.Errorf("insert file: %w", err)
	}
	return f, nil
}

func (r *Repository) scanFile(row rowScanner) (attendance.FileDescriptor, error) {
	var f attendance.FileDescriptor
	err := row.Scan(&f.ID, &f.FileName, &f.FileSize, &f.Total, &f.Valid, &f.Duplicate, &f.Error,
		timeCol{d: r.d, t: &f.UploadedAt})
	return f, err
}

// GetFile returns a descriptor by id.
func (r *Repository) GetFile(ctx context.Context, id string) (*attendance.FileDescriptor, error) {
	row := r.db.QueryRowContext(ctx, r.d.bind(`SELECT `+fileColumns+` FROM csv_files WHERE id = ?`), id)
	f, err := r.scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// ListFiles returns descriptors newest first.
func (r *Repository) ListFiles(ctx context.Context) ([]attendance.FileDescriptor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM csv_files ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []attendance.FileDescriptor{}
	for rows.Next() {
		f, err := r.scanFile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
