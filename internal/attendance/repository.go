package attendance

import "context"

// Repository stores attendee records and file descriptors.
//
// Lookups by id return (nil, nil) when nothing matches. All, Search and
// ByStatus return records in review order (see Before).
type Repository interface {
	Get(ctx context.Context, id string) (*Record, error)
	GetByEmail(ctx context.Context, email string) (*Record, error)
	// Insert assigns a fresh id and stamps CreatedAt.
	Insert(ctx context.Context, rec Record) (Record, error)
	// BulkInsert behaves like Insert for each record, in order.
	BulkInsert(ctx context.Context, recs []Record) ([]Record, error)
	Update(ctx context.Context, id string, patch Patch) (*Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	All(ctx context.Context) ([]Record, error)
	Search(ctx context.Context, query string) ([]Record, error)
	ByStatus(ctx context.Context, status Status) ([]Record, error)
	// PurgeByFile removes every record; records are not attributed to files.
	PurgeByFile(ctx context.Context, fileID string) error

	CreateFile(ctx context.Context, f FileDescriptor) (FileDescriptor, error)
	GetFile(ctx context.Context, id string) (*FileDescriptor, error)
	// ListFiles returns descriptors newest first.
	ListFiles(ctx context.Context) ([]FileDescriptor, error)

	Ping(ctx context.Context) error
}
