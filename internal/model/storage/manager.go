package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"net"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rx5v/catatan-pengeluaran-harian/internal/logger"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/model/customerr"
)

type managerConfig interface {
	DSN() string
	ConnectTimeout() time.Duration
}

// openFunc opens and verifies a database handle. Swapped in tests.
type openFunc func(ctx context.Context, dsn string) (*sql.DB, error)

type attempt struct {
	done chan struct{}
	db   *sql.DB
	err  error
}

// Manager owns the single database handle for the process lifetime.
// Acquire hands it out, lazily connecting on cold start and reconnecting
// after NoteError marks the handle dead. At most one connection attempt
// is in flight at a time; callers arriving during an attempt await its
// outcome instead of starting a redundant one.
type Manager struct {
	dsn     string
	timeout time.Duration
	open    openFunc

	mu       sync.Mutex
	db       *sql.DB
	ready    bool
	inflight *attempt
}

func NewManager(cfg managerConfig) *Manager {
	return &Manager{
		dsn:     cfg.DSN(),
		timeout: cfg.ConnectTimeout(),
		open:    openPostgres,
	}
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// one session, matching the low short-lived invocation concurrency
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Acquire returns the ready handle, or awaits the in-flight connection
// attempt, or starts a new one with a bounded timeout. A failed attempt
// is never retried inside Acquire; callers re-invoke it before each
// logical operation.
func (m *Manager) Acquire(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	if m.ready {
		db := m.db
		m.mu.Unlock()
		return db, nil
	}

	if at := m.inflight; at != nil {
		m.mu.Unlock()
		select {
		case <-at.done:
		case <-ctx.Done():
			return nil, &customerr.ConnectionError{Err: ctx.Err()}
		}
		if at.err != nil {
			return nil, &customerr.ConnectionError{Err: at.err}
		}
		return at.db, nil
	}

	at := &attempt{done: make(chan struct{})}
	m.inflight = at
	m.mu.Unlock()

	// the attempt is shared by every awaiting caller, so its deadline
	// must not be tied to any single caller's context
	connectCtx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	db, err := m.open(connectCtx, m.dsn)

	m.mu.Lock()
	m.inflight = nil
	if err != nil {
		m.db, m.ready = nil, false
	} else {
		m.db, m.ready = db, true
	}
	m.mu.Unlock()

	at.db, at.err = db, err
	close(at.done)

	if err != nil {
		logger.Error("database connection attempt failed", zap.Error(err))
		return nil, &customerr.ConnectionError{Err: err}
	}
	logger.Info("database connection established")
	return db, nil
}

// NoteError is the transport-failure listener: the storage layer reports
// every operation error here, and connection-class failures flip the
// ready flag so the next Acquire reconnects instead of reusing a dead
// handle. Non-transport errors leave the handle alone.
func (m *Manager) NoteError(err error) {
	if err == nil || !isTransportError(err) {
		return
	}
	m.mu.Lock()
	if m.ready {
		logger.Warn("database handle marked dead", zap.Error(err))
		if m.db != nil {
			_ = m.db.Close()
		}
		m.db, m.ready = nil, false
	}
	m.mu.Unlock()
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		_ = m.db.Close()
	}
	m.db, m.ready = nil, false
}

func isTransportError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08 is connection exceptions; 57P01 is admin shutdown
		return pqErr.Code.Class() == "08" || pqErr.Code == "57P01"
	}
	return false
}
