// Package mathcache persists LaTeX to MathML conversions between runs.
//
// Every conversion run ages all entries by one; an entry used during the
// run is reset to zero. Entries left unused for more than MaxUnused runs
// are pruned when the run ends. Payloads are stored xz compressed, and a
// bounded in-memory tier sits in front of the database.
package mathcache

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/quizqti/core/cache"
	"github.com/FocuswithJustin/quizqti/core/cas"
	qerrors "github.com/FocuswithJustin/quizqti/core/errors"
	"github.com/FocuswithJustin/quizqti/core/sqlite"
	"github.com/FocuswithJustin/quizqti/internal/logging"
)

// Driver selects the storage backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

// DefaultMaxUnused is the number of runs an entry may go unused before it
// is pruned.
const DefaultMaxUnused = 10

// DefaultMaxEntries bounds the in-memory tier.
const DefaultMaxEntries = 512

// Config configures a Store.
type Config struct {
	Driver     Driver
	DSN        string
	MaxEntries int
	MaxUnused  int
}

// DefaultPath returns the SQLite cache location under the user cache
// directory.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "quizqti", "mathml.db")
}

// Store is a MathML cache. It is safe for concurrent use.
type Store struct {
	db        *sql.DB
	driver    Driver
	mem       *cache.MathCache
	maxUnused int

	mu   sync.Mutex
	used map[string]bool // keys marked used since the last Age
}

// timeNow is replaced in tests.
var timeNow = time.Now

// Open opens the cache described by cfg and creates its table when
// missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MaxUnused <= 0 {
		cfg.MaxUnused = DefaultMaxUnused
	}
	s := &Store{
		driver:    cfg.Driver,
		mem:       cache.NewMathCache(cfg.MaxEntries, 0),
		maxUnused: cfg.MaxUnused,
		used:      make(map[string]bool),
	}

	var (
		db     *sql.DB
		err    error
		schema string
	)
	switch cfg.Driver {
	case DriverMemory:
		return s, nil
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = DefaultPath()
		}
		db, err = sqlite.Open(dsn)
		schema = schemaSQLite
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mathcache: postgres driver requires a dsn")
		}
		db, err = sql.Open("pgx", cfg.DSN)
		schema = schemaPostgres
	default:
		return nil, fmt.Errorf("mathcache: unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, qerrors.Wrapf(err, "mathcache: open %s", cfg.Driver)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, qerrors.Wrapf(err, "mathcache: open %s", cfg.Driver)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, qerrors.Wrap(err, "mathcache: create schema")
	}
	s.db = db
	return s, nil
}

// backend names the module serving the driver.
func (s *Store) backend() string {
	switch s.driver {
	case DriverSQLite:
		return sqlite.Package()
	case DriverPostgres:
		return "github.com/jackc/pgx/v5"
	}
	return ""
}

// Driver returns the backend in use.
func (s *Store) Driver() Driver {
	return s.driver
}

func key(latex string) string {
	return cas.SumString(latex).Hex()
}

// Get returns the MathML cached for latex and marks the entry as used.
func (s *Store) Get(ctx context.Context, latex string) (string, bool, error) {
	k := key(latex)
	if mathml, ok := s.mem.Get(latex); ok {
		if err := s.markUsed(ctx, k); err != nil {
			return "", false, err
		}
		return mathml, true, nil
	}
	if s.db == nil {
		return "", false, nil
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM mathml WHERE hash = $1`, k).Scan(&payload)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	mathml, err := decompress(payload)
	if err != nil {
		logging.Warn("dropping unreadable cache entry", "key", k, "error", err)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM mathml WHERE hash = $1`, k)
		return "", false, nil
	}
	if err := s.markUsed(ctx, k); err != nil {
		return "", false, err
	}
	s.mem.Put(latex, mathml)
	return mathml, true, nil
}

// markUsed resets the unused count of k once per run.
func (s *Store) markUsed(ctx context.Context, k string) error {
	if s.db == nil {
		return nil
	}
	s.mu.Lock()
	done := s.used[k]
	s.used[k] = true
	s.mu.Unlock()
	if done {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE mathml SET unused = 0 WHERE hash = $1`, k)
	return err
}

// Put stores the MathML for latex as a fresh entry.
func (s *Store) Put(ctx context.Context, latex, mathml string) error {
	s.mem.Put(latex, mathml)
	if s.db == nil {
		return nil
	}
	k := key(latex)
	s.mu.Lock()
	s.used[k] = true
	s.mu.Unlock()
	payload, err := compress(mathml)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO mathml (hash, latex, payload, unused, created_at)
VALUES ($1, $2, $3, 0, $4)
ON CONFLICT (hash) DO UPDATE SET payload = EXCLUDED.payload, unused = 0`,
		k, latex, payload, timeNow().Unix())
	return err
}

// Age starts a conversion run: every entry's unused count goes up by one.
func (s *Store) Age(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	s.mu.Lock()
	s.used = make(map[string]bool)
	s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE mathml SET unused = unused + 1`)
	return err
}

// Prune ends a conversion run by deleting entries unused for more than
// MaxUnused runs. It returns the number of entries removed.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM mathml WHERE unused > $1`, s.maxUnused)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Debug("pruned math cache", "entries", n)
	}
	return n, nil
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	s.mem.Clear()
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM mathml`)
	return err
}

// Stats describes the cache contents.
type Stats struct {
	Driver       Driver      `json:"driver"`
	Backend      string      `json:"backend,omitempty"`
	Entries      int64       `json:"entries"`
	PayloadBytes int64       `json:"payload_bytes"`
	Stale        int64       `json:"stale"`
	MaxUnused    int         `json:"max_unused"`
	Memory       cache.Stats `json:"memory"`
}

// Stats reports entry counts. Stale entries are those not used in the
// most recent run.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Driver: s.driver, Backend: s.backend(), MaxUnused: s.maxUnused, Memory: s.mem.Stats()}
	if s.db == nil {
		st.Entries = int64(s.mem.Len())
		return st, nil
	}
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(LENGTH(payload)), 0), COALESCE(SUM(CASE WHEN unused > 0 THEN 1 ELSE 0 END), 0)
FROM mathml`).Scan(&st.Entries, &st.PayloadBytes, &st.Stale)
	return st, err
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func compress(s string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("mathcache: xz writer: %w", err)
	}
	if _, err := io.WriteString(w, s); err != nil {
		return nil, fmt.Errorf("mathcache: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("mathcache: compress: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) (string, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
