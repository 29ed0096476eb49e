// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/custodia-foundation/custodia/lib/clock"
)

// storeSchema is the persistent journal layout. One append-only table;
// seq is assigned by the store, not SQLite, so the hash chain and the
// primary key can never disagree.
const storeSchema = `
CREATE TABLE IF NOT EXISTS journal (
	seq       INTEGER PRIMARY KEY,
	time      TEXT NOT NULL,
	type      TEXT NOT NULL,
	payload   BLOB NOT NULL,
	prev_hash BLOB NOT NULL,
	hash      BLOB NOT NULL
);
`

// Store is a SQLite-backed journal. Each append — a single entry or
// an AppendAll batch — is one SQLite transaction; the hash chain head
// is cached in memory so appends do not re-read the tail.
//
// Store is safe for concurrent use. Appends are serialized by an
// internal mutex (SQLite serializes writes anyway; the mutex keeps
// the cached head coherent with the table).
type Store struct {
	pool   *sqlitex.Pool
	clk    clock.Clock
	logger *slog.Logger
	path   string

	// appendMu guards head and nextSeq against concurrent appends.
	appendMu sync.Mutex
	head     Hash
	nextSeq  uint64
}

// StoreConfig holds the parameters for opening a journal store.
type StoreConfig struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist. The file is created if it does
	// not exist. Use ":memory:" with PoolSize 1 for tests.
	Path string

	// PoolSize is the number of connections in the pool. Appends are
	// serialized regardless, so the extra connections only help
	// concurrent readers. Defaults to 4 if zero or negative.
	PoolSize int

	// Clock provides entry timestamps. A nil Clock defaults to the
	// system clock.
	Clock clock.Clock

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// OpenStore opens (creating if necessary) a persistent journal. The
// existing hash chain is verified in full before the store is usable:
// a journal that fails verification was tampered with or corrupted,
// and appending to it would launder the damage behind fresh valid
// entries.
func OpenStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal store: Path is required")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("journal store: opening %s: %w", cfg.Path, err)
	}

	store := &Store{
		pool:    pool,
		clk:     clk,
		logger:  logger,
		path:    cfg.Path,
		nextSeq: 1,
	}

	if err := store.loadAndVerify(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("journal store opened",
		"path", cfg.Path,
		"entries", store.nextSeq-1,
	)
	return store, nil
}

// prepareConnection applies the store's standard pragmas. Runs once
// per pooled connection, on first use.
func prepareConnection(conn *sqlite.Conn) error {
	// WAL keeps readers (journal tails, chain verification) off the
	// writer's back. NORMAL synchronous is durable enough under WAL
	// for an audit log whose source of truth is the in-process
	// ledger until the next checkpoint.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("journal store: %s: %w", pragma, err)
		}
	}
	return sqlitex.ExecuteScript(conn, storeSchema, nil)
}

// loadAndVerify reads the full journal, verifies the hash chain, and
// primes the cached head and next sequence number.
func (s *Store) loadAndVerify(ctx context.Context) error {
	entries, err := s.ReadFrom(ctx, 1)
	if err != nil {
		return err
	}
	if err := VerifyChain(entries, Hash{}); err != nil {
		return fmt.Errorf("journal store: %s failed verification: %w", s.path, err)
	}
	if len(entries) > 0 {
		tail := entries[len(entries)-1]
		s.head = tail.Hash
		s.nextSeq = tail.Seq + 1
	}
	return nil
}

// Append chains and persists a new entry. Implements [Journal].
func (s *Store) Append(entryType string, payload any) (Entry, error) {
	entries, err := s.AppendAll([]Record{{Type: entryType, Payload: payload}})
	if err != nil {
		return Entry{}, err
	}
	return entries[0], nil
}

// AppendAll chains and persists a batch of records in one SQLite
// transaction. Either every record lands or the table and the cached
// head are untouched.
func (s *Store) AppendAll(records []Record) ([]Entry, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	seq := s.nextSeq
	prev := s.head
	batch := make([]Entry, 0, len(records))
	for _, record := range records {
		entry, buildErr := newEntry(seq, s.clk.Now(), record.Type, record.Payload, prev)
		if buildErr != nil {
			return nil, buildErr
		}
		batch = append(batch, entry)
		prev = entry.Hash
		seq++
	}

	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("journal store: append: %w", err)
	}
	defer s.pool.Put(conn)

	if err := s.insertBatch(conn, batch); err != nil {
		return nil, err
	}

	s.head = prev
	s.nextSeq = seq
	return batch, nil
}

// insertBatch writes the chained entries inside one immediate
// transaction. The cached head is only advanced by the caller after
// this returns nil, so a rolled-back batch leaves the store coherent.
func (s *Store) insertBatch(conn *sqlite.Conn, batch []Entry) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("journal store: beginning append transaction: %w", err)
	}
	defer endFn(&err)

	for i := range batch {
		entry := &batch[i]
		err = sqlitex.Execute(conn,
			`INSERT INTO journal (seq, time, type, payload, prev_hash, hash) VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{
					int64(entry.Seq),
					entry.Time,
					entry.Type,
					[]byte(entry.Payload),
					entry.PrevHash[:],
					entry.Hash[:],
				},
			})
		if err != nil {
			return fmt.Errorf("journal store: inserting entry %d: %w", entry.Seq, err)
		}
	}
	return nil
}

// ReadFrom returns all entries with sequence number >= seq, in order.
// Pass 1 for the full journal.
func (s *Store) ReadFrom(ctx context.Context, seq uint64) ([]Entry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal store: read: %w", err)
	}
	defer s.pool.Put(conn)

	var entries []Entry
	err = sqlitex.Execute(conn,
		`SELECT seq, time, type, payload, prev_hash, hash FROM journal WHERE seq >= ? ORDER BY seq`,
		&sqlitex.ExecOptions{
			Args: []any{int64(seq)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entry := Entry{
					Seq:  uint64(stmt.ColumnInt64(0)),
					Time: stmt.ColumnText(1),
					Type: stmt.ColumnText(2),
				}
				payload := make([]byte, stmt.ColumnLen(3))
				stmt.ColumnBytes(3, payload)
				entry.Payload = payload
				if stmt.ColumnBytes(4, entry.PrevHash[:]) != len(entry.PrevHash) {
					return fmt.Errorf("entry %d: malformed prev_hash", entry.Seq)
				}
				if stmt.ColumnBytes(5, entry.Hash[:]) != len(entry.Hash) {
					return fmt.Errorf("entry %d: malformed hash", entry.Seq)
				}
				entries = append(entries, entry)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("journal store: reading from %d: %w", seq, err)
	}
	return entries, nil
}

// Head returns the hash of the most recent entry, or the zero hash
// for an empty journal.
func (s *Store) Head() Hash {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	return s.head
}

// Len returns the number of persisted entries.
func (s *Store) Len() uint64 {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	return s.nextSeq - 1
}

// Verify re-reads the full journal from SQLite and checks the hash
// chain. Use for on-demand audits of a live store; OpenStore already
// verifies once at startup.
func (s *Store) Verify(ctx context.Context) error {
	entries, err := s.ReadFrom(ctx, 1)
	if err != nil {
		return err
	}
	return VerifyChain(entries, Hash{})
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("journal store: closing %s: %w", s.path, err)
	}
	s.logger.Info("journal store closed", "path", s.path)
	return nil
}
