package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// sqliteTimeLayout is fixed width so text comparison follows time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type dialect struct {
	name       string
	goose      goose.Dialect
	migrations string
	numbered   bool
	groupOrder string
}

var (
	dialectSQLite = dialect{
		name:       "sqlite",
		goose:      goose.DialectSQLite3,
		migrations: "migrations/sqlite",
		groupOrder: "duplicate_group",
	}
	dialectPostgres = dialect{
		name:       "postgres",
		goose:      goose.DialectPostgres,
		migrations: "migrations/postgres",
		numbered:   true,
		groupOrder: `duplicate_group COLLATE "C"`,
	}
)

// bind rewrites ? placeholders to $n where the driver needs it.
func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) timeArg(t time.Time) any {
	if d.numbered {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func (d dialect) messagesArg(msgs []string) (any, error) {
	if msgs == nil {
		msgs = []string{}
	}
	if d.numbered {
		return pq.Array(msgs), nil
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// timeCol and messagesCol are scan targets that decode per dialect.
type timeCol struct {
	d dialect
	t *time.Time
}

func (c timeCol) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*c.t = v.UTC()
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	case nil:
		*c.t = time.Time{}
		return nil
	}
	return fmt.Errorf("store: unsupported time value %T", src)
}

func (c timeCol) parse(s string) error {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return fmt.Errorf("store: parse time %q: %w", s, err)
	}
	*c.t = t.UTC()
	return nil
}

type messagesCol struct {
	d    dialect
	msgs *[]string
}

func (c messagesCol) Scan(src any) error {
	var out []string
	if c.d.numbered {
		var arr pq.StringArray
		if err := arr.Scan(src); err != nil {
			return err
		}
		out = arr
	} else {
		var raw []byte
		switch v := src.(type) {
		case string:
			raw = []byte(v)
		case []byte:
			raw = v
		case nil:
		default:
			return fmt.Errorf("store: unsupported messages value %T", src)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &out); err != nil {
				return fmt.Errorf("store: decode messages: %w", err)
			}
		}
	}
	if len(out) == 0 {
		out = nil
	}
	*c.msgs = out
	return nil
}

// DB wraps sql.DB with the dialect it was opened for.
type DB struct {
	Client  *sql.DB
	dialect dialect
}

// OpenSQLite opens (creating if needed) a SQLite file and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return finishOpen(ctx, db, dialectSQLite)
}

// OpenPostgres connects with pgx and applies migrations.
func OpenPostgres(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return finishOpen(ctx, db, dialectPostgres)
}

func finishOpen(ctx context.Context, db *sql.DB, d dialect) (*DB, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	out := &DB{Client: db, dialect: d}
	if err := out.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", d.name, err)
	}
	return out, nil
}

func (d *DB) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, d.dialect.migrations)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(d.dialect.goose, d.Client, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
