package portfolio

import (
	"context"
	"database/sql"
	"time"
	"traderdeck/lib/scrapers/carnivore"

	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	time INTEGER NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_positions (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	book TEXT NOT NULL,
	ticker TEXT NOT NULL,
	current_price REAL,
	weight REAL,
	pct_return REAL
);
CREATE INDEX IF NOT EXISTS run_positions_ticker ON run_positions(ticker);
`

// History appends every run's assembled positions to sqlite so that
// position drift is inspectable over time. The JSON snapshot file
// remains the artifact of record; this is operator tooling.
type History struct {
	db *sql.DB
}

func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(historySchema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &History{db: db}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) Record(ctx context.Context, snapshot Snapshot, status RunStatus, at time.Time) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO runs (time, source, status) VALUES (?, ?, ?)`,
		at.Unix(), snapshot.Source, string(status),
	)
	if err != nil {
		return err
	}
	runId, err := res.LastInsertId()
	if err != nil {
		return err
	}

	books := []struct {
		name      string
		positions []carnivore.Position
	}{
		{"sector_rotation", snapshot.SectorRotation},
		{"long_term", snapshot.LongTerm},
	}
	for _, book := range books {
		for _, p := range book.positions {
			_, err = tx.ExecContext(
				ctx,
				`INSERT INTO run_positions (run_id, book, ticker, current_price, weight, pct_return)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				runId, book.name, p.Ticker, p.CurrentPrice, p.Weight, p.PctReturn,
			)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

type RunSummary struct {
	Time           time.Time
	Source         string
	Status         RunStatus
	SectorRotation int
	LongTerm       int
}

func (h *History) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := h.db.QueryContext(
		ctx,
		`SELECT r.time, r.source, r.status,
			COUNT(CASE WHEN p.book = 'sector_rotation' THEN 1 END),
			COUNT(CASE WHEN p.book = 'long_term' THEN 1 END)
		 FROM runs r
		 LEFT JOIN run_positions p ON p.run_id = r.id
		 GROUP BY r.id
		 ORDER BY r.time DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var summary RunSummary
		var unix int64
		var status string
		err = rows.Scan(&unix, &summary.Source, &status, &summary.SectorRotation, &summary.LongTerm)
		if err != nil {
			return nil, err
		}
		summary.Time = time.Unix(unix, 0).UTC()
		summary.Status = RunStatus(status)
		out = append(out, summary)
	}
	return out, rows.Err()
}
