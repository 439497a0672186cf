package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound    = errors.New("store: not found")
	ErrInvalidLead = errors.New("store: invalid lead")
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Options struct {
	// StrictDedup adds unique indexes on leads.website and leads.email and
	// reports the resulting conflicts as duplicates.
	StrictDedup bool
	// RelevanceFloor is applied on top of each campaign's own minimum.
	RelevanceFloor int
}

type DB struct {
	Pool   *sql.DB
	Driver string
	opts   Options
}

// Open connects to sqlite (dsn is a file path) or mysql (dsn in
// go-sql-driver format) and pings the server.
func Open(driver, dsn string, opts Options) (*DB, error) {
	var pool *sql.DB
	var err error

	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
		pool, err = sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dsn))
		if err != nil {
			return nil, err
		}
		pool.SetMaxOpenConns(1) // sqlite typically wants 1 writer
	case DriverMySQL:
		mc, perr := mysql.ParseDSN(dsn)
		if perr != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", perr)
		}
		if mc.Params == nil {
			mc.Params = map[string]string{}
		}
		if _, ok := mc.Params["charset"]; !ok {
			mc.Params["charset"] = "utf8mb4"
		}
		pool, err = sql.Open("mysql", mc.FormatDSN())
		if err != nil {
			return nil, err
		}
		pool.SetMaxOpenConns(4)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return &DB{Pool: pool, Driver: driver, opts: opts}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// Checkpoint flushes the SQLite write-ahead log into the main file. It is
// a no-op on MySQL.
func (d *DB) Checkpoint(ctx context.Context) error {
	if d.Driver != DriverSQLite {
		return nil
	}
	if _, err := d.Pool.ExecContext(ctx, `PRAGMA wal_checkpoint(FULL);`); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isDuplicateIndex(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1061
}

// timestamps are stored as RFC3339 UTC text so ordering by string works
// on both drivers.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullTS(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return ts(*t)
}

func parseTS(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
