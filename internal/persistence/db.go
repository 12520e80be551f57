// Package persistence journals a simulation run to SQLite: the notice
// stream, the content trails of every actor, and end-of-day ledgers and
// balances.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/engine"
)

// DB wraps a SQLite connection for run journals.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		config TEXT NOT NULL,
		created INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		at INTEGER NOT NULL,
		category TEXT NOT NULL,
		actor TEXT NOT NULL,
		kind TEXT NOT NULL,
		description TEXT NOT NULL,
		meta_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contents (
		run_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		id INTEGER NOT NULL,
		grouping_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		sender TEXT NOT NULL,
		receiver TEXT NOT NULL,
		at INTEGER NOT NULL,
		direction TEXT NOT NULL,
		body_json TEXT NOT NULL,
		PRIMARY KEY (run_id, actor, id)
	);

	CREATE TABLE IF NOT EXISTS ledgers (
		run_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		product TEXT NOT NULL,
		actual REAL NOT NULL,
		ordered REAL NOT NULL,
		reserved REAL NOT NULL,
		PRIMARY KEY (run_id, actor, product)
	);

	CREATE TABLE IF NOT EXISTS balances (
		run_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		balance REAL NOT NULL,
		PRIMARY KEY (run_id, actor)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_notices_run ON notices(run_id, at);
	CREATE INDEX IF NOT EXISTS idx_contents_group ON contents(run_id, grouping_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one journaled simulation run.
type Run struct {
	ID        string `db:"id" json:"id"`
	StartedAt string `db:"started_at" json:"started_at"` // Simulated start date
	Seed      int64  `db:"seed" json:"seed"`
	Config    string `db:"config" json:"config"`
}

// StartRun registers a new run and returns its id.
func (db *DB) StartRun(start time.Time, seed int64, config string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, started_at, seed, config, created) VALUES (?, ?, ?, ?, ?)",
		id, start.Format(time.RFC3339), seed, config, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, started_at, seed, config FROM runs ORDER BY created DESC, rowid DESC LIMIT 1")
	return r, err
}

// SaveMeta stores a key-value pair for a run.
func (db *DB) SaveMeta(runID, key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, ?, ?)",
		runID, key, value,
	)
	return err
}

// GetMeta retrieves a metadata value of a run.
func (db *DB) GetMeta(runID, key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE run_id = ? AND key = ?", runID, key)
	return value, err
}

// SaveNotices appends notices to the run's journal.
func (db *DB) SaveNotices(runID string, notices []engine.Notice) error {
	if len(notices) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO notices
		(run_id, at, category, actor, kind, description, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range notices {
		meta, err := json.Marshal(n.Meta)
		if err != nil {
			return fmt.Errorf("encode meta of %s/%s: %w", n.Category, n.Kind, err)
		}
		if _, err := stmt.Exec(runID, int64(n.At), n.Category, n.Actor, n.Kind, n.Description, string(meta)); err != nil {
			return fmt.Errorf("insert notice: %w", err)
		}
	}

	return tx.Commit()
}

// NoticeRow is a journaled notice.
type NoticeRow struct {
	At          int64  `db:"at" json:"at"`
	Category    string `db:"category" json:"category"`
	Actor       string `db:"actor" json:"actor"`
	Kind        string `db:"kind" json:"kind"`
	Description string `db:"description" json:"description"`
	Meta        string `db:"meta_json" json:"meta"`
}

// Time returns the simulated time of the notice.
func (n NoticeRow) Time() engine.Time { return engine.Time(n.At) }

// RecentNotices returns the most recent notices of a run, newest first.
func (db *DB) RecentNotices(runID string, limit int) ([]NoticeRow, error) {
	var rows []NoticeRow
	err := db.conn.Select(&rows,
		`SELECT at, category, actor, kind, description, meta_json FROM notices
		 WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		runID, limit,
	)
	return rows, err
}

// NoticeCount is the number of notices of one category and kind.
type NoticeCount struct {
	Category string `db:"category" json:"category"`
	Kind     string `db:"kind" json:"kind"`
	Count    int    `db:"n" json:"count"`
}

// NoticeCounts tallies a run's notices by category and kind.
func (db *DB) NoticeCounts(runID string) ([]NoticeCount, error) {
	var counts []NoticeCount
	err := db.conn.Select(&counts,
		`SELECT category, kind, COUNT(*) AS n FROM notices WHERE run_id = ?
		 GROUP BY category, kind ORDER BY category, kind`,
		runID,
	)
	return counts, err
}

// SaveSnapshot replaces the run's stored content trails, ledgers and
// balances with the current state of every actor in m.
func (db *DB) SaveSnapshot(runID string, m *actor.Model) error {
	actors := m.Actors()
	slog.Info("saving snapshot", "run", runID, "actors", len(actors), "at", m.Now())

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"contents", "ledgers", "balances"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", runID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	stmt, err := tx.Preparex(`INSERT INTO contents
		(run_id, actor, id, grouping_id, kind, sender, receiver, at, direction, body_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range actors {
		for _, e := range a.Store().Entries() {
			hd := e.Content.Head()
			body, err := json.Marshal(e.Content)
			if err != nil {
				return fmt.Errorf("encode content %d of %s: %w", hd.ID, a.ID(), err)
			}
			_, err = stmt.Exec(runID, a.ID(), hd.ID, hd.GroupingID, string(e.Content.Kind()),
				hd.Sender, hd.Receiver, int64(hd.Timestamp), e.Direction.String(), string(body))
			if err != nil {
				return fmt.Errorf("insert content %d of %s: %w", hd.ID, a.ID(), err)
			}
		}
		for _, name := range a.Ledger().Products() {
			s, _ := a.Ledger().Get(name)
			_, err := tx.Exec(`INSERT INTO ledgers (run_id, actor, product, actual, ordered, reserved)
				VALUES (?, ?, ?, ?, ?, ?)`, runID, a.ID(), name, s.Actual, s.Ordered, s.Reserved)
			if err != nil {
				return fmt.Errorf("insert ledger %s/%s: %w", a.ID(), name, err)
			}
		}
		if acc := a.Account(); acc != nil {
			_, err := tx.Exec("INSERT INTO balances (run_id, actor, balance) VALUES (?, ?, ?)",
				runID, a.ID(), float64(acc.Balance()))
			if err != nil {
				return fmt.Errorf("insert balance %s: %w", a.ID(), err)
			}
		}
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, 'snapshot_at', ?)",
		runID, fmt.Sprintf("%d", int64(m.Now()))); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("snapshot saved", "run", runID)
	return nil
}

// ContentRow is one stored message of an actor's trail.
type ContentRow struct {
	Actor      string `db:"actor" json:"actor"`
	ID         uint64 `db:"id" json:"id"`
	GroupingID uint64 `db:"grouping_id" json:"grouping_id"`
	Kind       string `db:"kind" json:"kind"`
	Sender     string `db:"sender" json:"sender"`
	Receiver   string `db:"receiver" json:"receiver"`
	At         int64  `db:"at" json:"at"`
	Direction  string `db:"direction" json:"direction"`
	Body       string `db:"body_json" json:"body"`
}

// LoadContents returns an actor's stored trail in id order, restricted to
// one grouping id unless groupingID is 0.
func (db *DB) LoadContents(runID, actorID string, groupingID uint64) ([]ContentRow, error) {
	q := `SELECT actor, id, grouping_id, kind, sender, receiver, at, direction, body_json
		FROM contents WHERE run_id = ? AND actor = ?`
	args := []any{runID, actorID}
	if groupingID != 0 {
		q += " AND grouping_id = ?"
		args = append(args, groupingID)
	}
	var rows []ContentRow
	err := db.conn.Select(&rows, q+" ORDER BY id", args...)
	return rows, err
}

// LedgerRow is a stored stock record.
type LedgerRow struct {
	Actor    string  `db:"actor" json:"actor"`
	Product  string  `db:"product" json:"product"`
	Actual   float64 `db:"actual" json:"actual"`
	Ordered  float64 `db:"ordered" json:"ordered"`
	Reserved float64 `db:"reserved" json:"reserved"`
}

// LoadLedgers returns the stored stock records of a run.
func (db *DB) LoadLedgers(runID string) ([]LedgerRow, error) {
	var rows []LedgerRow
	err := db.conn.Select(&rows,
		"SELECT actor, product, actual, ordered, reserved FROM ledgers WHERE run_id = ? ORDER BY actor, product",
		runID,
	)
	return rows, err
}

// LoadBalances returns the stored account balances of a run by actor.
func (db *DB) LoadBalances(runID string) (map[string]float64, error) {
	var rows []struct {
		Actor   string  `db:"actor"`
		Balance float64 `db:"balance"`
	}
	if err := db.conn.Select(&rows, "SELECT actor, balance FROM balances WHERE run_id = ?", runID); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.Actor] = r.Balance
	}
	return out, nil
}
