package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"panelcast/internal/config"
)

// Store persists jobs, cached manifests and share tokens in one SQLite file.
type Store struct {
	db    *sql.DB
	path  string
	locks *KeyedMutex
}

// connPragmas are applied by the driver to every pooled connection.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(FULL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

// Open opens the manifest database under the configured cache dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens (creating if needed) the database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	query := url.Values{}
	for _, p := range connPragmas {
		query.Add("_pragma", p)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("open manifest db: %w", err)
	}
	s := &Store{db: db, path: dbPath, locks: NewKeyedMutex()}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

// Locks returns the per-fingerprint writer locks. Every writer of a cache
// entry or share token holds the fingerprint's lock.
func (s *Store) Locks() *KeyedMutex { return s.locks }

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// busy_timeout covers most contention; these retries catch the SQLITE_BUSY
// that WAL still returns when a read transaction upgrades to a write.
const (
	busyAttempts  = 5
	busyFirstWait = 10 * time.Millisecond
	busyMaxWait   = 200 * time.Millisecond
)

func isBusy(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) && coded.Code()&0xff == 5 {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	wait := busyFirstWait
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !isBusy(err) || attempt == busyAttempts {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, busyMaxWait)
	}
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

// inTx runs fn in a transaction and retries the whole unit on SQLITE_BUSY.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
