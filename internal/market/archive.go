package market

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Archive is a local sqlite copy of every imported session bar. The serve
// mode imports new bhavcopies into it so backtests can align forecasts
// against realized bars without re-reading the raw CSV tree.
type Archive struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewArchive(path string) (*Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureArchiveSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Archive{db: db, path: path}, nil
}

func ensureArchiveSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS session_bars (
		symbol TEXT NOT NULL,
		session_date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		deliverable_qty INTEGER,
		imported_at INTEGER NOT NULL,
		PRIMARY KEY(symbol, session_date)
	);`)
	return err
}

func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// UpsertBars writes bars idempotently; re-importing a session file is a
// no-op for unchanged rows.
func (a *Archive) UpsertBars(ctx context.Context, bars []SessionBar) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return fmt.Errorf("archive is closed")
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO session_bars
		(symbol, session_date, open, high, low, close, volume, deliverable_qty, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, session_date) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume,
			deliverable_qty=excluded.deliverable_qty,
			imported_at=excluded.imported_at`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := time.Now().Unix()
	for _, b := range bars {
		var deliv any
		if b.HasDeliverable {
			deliv = b.DeliverableQty
		}
		if _, err := stmt.ExecContext(ctx,
			b.Symbol, b.Date.Format(DateLayout),
			b.Open, b.High, b.Low, b.Close, b.Volume, deliv, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// BarsSince loads every archived bar on or after the given date, ordered
// symbol then date so the result feeds NewSeries directly.
func (a *Archive) BarsSince(ctx context.Context, since time.Time) (*Series, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil, fmt.Errorf("archive is closed")
	}
	rows, err := a.db.QueryContext(ctx, `SELECT symbol, session_date, open, high, low, close, volume, deliverable_qty
		FROM session_bars WHERE session_date >= ? ORDER BY symbol, session_date`,
		Day(since).Format(DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bars []SessionBar
	for rows.Next() {
		var (
			b       SessionBar
			dateStr string
			deliv   sql.NullInt64
		)
		if err := rows.Scan(&b.Symbol, &dateStr, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &deliv); err != nil {
			return nil, err
		}
		if b.Date, err = ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("corrupt session_date %q: %w", dateStr, err)
		}
		if deliv.Valid {
			b.DeliverableQty = deliv.Int64
			b.HasDeliverable = true
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	return NewSeries(bars)
}

// LatestSessionDate reports the newest archived session, or false when the
// archive is empty.
func (a *Archive) LatestSessionDate(ctx context.Context) (time.Time, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return time.Time{}, false, fmt.Errorf("archive is closed")
	}
	var dateStr sql.NullString
	err := a.db.QueryRowContext(ctx, `SELECT MAX(session_date) FROM session_bars`).Scan(&dateStr)
	if err != nil {
		return time.Time{}, false, err
	}
	if !dateStr.Valid || dateStr.String == "" {
		return time.Time{}, false, nil
	}
	d, err := ParseDate(dateStr.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}
