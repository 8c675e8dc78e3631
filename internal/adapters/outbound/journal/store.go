package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charleschow/paysign/internal/telemetry"

	_ "modernc.org/sqlite"
)

const (
	defaultMaxRows int64 = 100_000
	evictBatchSize       = 50
	vacuumInterval       = 100 // run incremental vacuum every N evictions
)

// Entry is one signed request sent to the gateway. The secret is never part of it.
type Entry struct {
	APIName    string
	Path       string
	OutTradeNo string
	Sign       string
	Timestamp  int64 // value of the signed timestamp parameter
	StatusCode int
	Latency    time.Duration
	Err        string
	SentAt     time.Time
}

// Store keeps a FIFO journal of outgoing requests in SQLite, capped by row
// count. Oldest rows are evicted in batches once the cap is exceeded.
type Store struct {
	db           *sql.DB
	mu           sync.Mutex
	rows         int64
	maxRows      int64
	evictCounter int
}

func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA auto_vacuum = INCREMENTAL`,
		`CREATE TABLE IF NOT EXISTS requests (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			api          TEXT    NOT NULL,
			path         TEXT    NOT NULL,
			out_trade_no TEXT    NOT NULL DEFAULT '',
			sign         TEXT    NOT NULL,
			ts           INTEGER NOT NULL,
			status_code  INTEGER NOT NULL,
			latency_ms   INTEGER NOT NULL,
			error        TEXT    NOT NULL DEFAULT '',
			sent_at      TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_out_trade_no ON requests(out_trade_no)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema (%s): %w", stmt, err)
		}
	}

	var rows int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM requests`).Scan(&rows); err != nil {
		db.Close()
		return nil, fmt.Errorf("count rows: %w", err)
	}

	telemetry.Infof("journal: opened %s  rows=%d", path, rows)

	return &Store{db: db, rows: rows, maxRows: defaultMaxRows}, nil
}

// Record appends e. A nil Store discards it.
func (s *Store) Record(e Entry) error {
	if s == nil {
		return nil
	}
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO requests (api, path, out_trade_no, sign, ts, status_code, latency_ms, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.APIName, e.Path, e.OutTradeNo, e.Sign, e.Timestamp, e.StatusCode,
		e.Latency.Milliseconds(), e.Err, e.SentAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	telemetry.Metrics.JournalWrites.Inc()

	s.rows++
	if s.rows > s.maxRows {
		s.evict()
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT api, path, out_trade_no, sign, ts, status_code, latency_ms, error, sent_at
		 FROM requests ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			latencyMs int64
			sentAt    string
		)
		if err := rows.Scan(&e.APIName, &e.Path, &e.OutTradeNo, &e.Sign, &e.Timestamp,
			&e.StatusCode, &latencyMs, &e.Err, &sentAt); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Latency = time.Duration(latencyMs) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, sentAt); err == nil {
			e.SentAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// evict removes oldest rows until the count is back under the cap.
// Must be called with s.mu held.
func (s *Store) evict() {
	for s.rows > s.maxRows {
		res, err := s.db.Exec(
			`DELETE FROM requests WHERE id IN (SELECT id FROM requests ORDER BY id ASC LIMIT ?)`,
			evictBatchSize,
		)
		if err != nil {
			telemetry.Warnf("journal: evict failed: %v", err)
			return
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return
		}
		s.rows -= n
		s.evictCounter++

		if s.evictCounter%vacuumInterval == 0 {
			s.db.Exec(`PRAGMA incremental_vacuum`)
		}
	}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
