package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

const (
	preparedCacheSize = 128
	jobQueueDepth     = 64
)

// Options configures a database handle.
type Options struct {
	// Credential is an opaque key handed through to the engine untouched.
	// Empty disables it.
	Credential string

	// BusyTimeout sets how long the engine waits on database locks.
	BusyTimeout time.Duration

	// JournalMode sets the engine journal mode (WAL, DELETE, ...).
	JournalMode string

	// Logger receives structured operation logs. Defaults to slog.Default.
	Logger *slog.Logger

	// Filesystem is the file collaborator used for directory creation and
	// relocation. Defaults to the operating system.
	Filesystem Filesystem
}

func (o Options) withDefaults() Options {
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
	if o.JournalMode == "" {
		o.JournalMode = "WAL"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Filesystem == nil {
		o.Filesystem = OSFilesystem()
	}
	return o
}

// Handle owns exactly one storage-engine file. All access is funneled through
// a single execution goroutine, so operations submitted against the same
// handle complete in submission order and no two transactions interleave.
// A handle is replaced, not mutated, when the file is relocated during
// recovery.
type Handle struct {
	path   string
	opts   Options
	db     *sql.DB
	logger *slog.Logger
	stmts  *lru.Cache[string, *sql.Stmt]

	mu     sync.Mutex
	closed bool
	jobs   chan func()
	wg     sync.WaitGroup
}

// Open creates or opens the database file at path and starts the handle's
// execution goroutine. The parent directory is created when missing.
func Open(path string, opts Options) (*Handle, error) {
	opts = opts.withDefaults()

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := opts.Filesystem.MkdirAll(dir); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The handle serializes access itself; a single engine connection keeps
	// prepared statements and pragmas on one session.
	db.SetMaxOpenConns(1)

	for _, pragma := range startupPragmas(opts) {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	stmts, err := lru.NewWithEvict(preparedCacheSize, func(_ string, stmt *sql.Stmt) {
		_ = stmt.Close()
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepared statement cache: %w", err)
	}

	h := &Handle{
		path:   path,
		opts:   opts,
		db:     db,
		logger: opts.Logger,
		stmts:  stmts,
		jobs:   make(chan func(), jobQueueDepth),
	}

	h.wg.Add(1)
	go h.loop()

	return h, nil
}

func startupPragmas(opts Options) []string {
	pragmas := make([]string, 0, 4)
	if opts.Credential != "" {
		// Engines without an encryption extension ignore the unknown pragma.
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA key = '%s'", strings.ReplaceAll(opts.Credential, "'", "''")))
	}
	pragmas = append(pragmas,
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
		fmt.Sprintf("PRAGMA journal_mode = %s", opts.JournalMode),
		"PRAGMA foreign_keys = ON",
	)
	return pragmas
}

// Path returns the database file path this handle is bound to.
func (h *Handle) Path() string {
	return h.path
}

// Ping tests the engine connection.
func (h *Handle) Ping(ctx context.Context) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrDatabaseClosed
	}
	return h.db.PingContext(ctx)
}

// Close drains already-submitted operations, releases cached statements and
// closes the engine resource. Subsequent operations fail with
// ErrDatabaseClosed. Close is idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.jobs)
	h.mu.Unlock()

	h.wg.Wait()
	h.stmts.Purge()
	return h.db.Close()
}

func (h *Handle) loop() {
	defer h.wg.Done()
	for job := range h.jobs {
		job()
	}
}

// submit queues fn on the handle's execution goroutine and returns its
// pending result. Submissions after Close fail immediately.
func submit[T any](h *Handle, operation string, fn func() (T, error)) *Result[T] {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return failedResult[T](ErrDatabaseClosed)
	}

	res := newResult[T]()
	opID := uuid.NewString()
	h.jobs <- func() {
		value, err := fn()
		if err != nil {
			h.logger.Debug("database operation failed",
				"op", operation, "op_id", opID, "path", h.path, "error", err)
		}
		res.complete(value, err)
	}
	h.mu.Unlock()

	return res
}
