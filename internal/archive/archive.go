// Package archive keeps a SQLite record of every published report, one row
// per run date.
package archive

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

const schema = `
CREATE TABLE IF NOT EXISTS reports (
    date      TEXT PRIMARY KEY,
    results   INTEGER NOT NULL,
    pdf_path  TEXT NOT NULL,
    page_path TEXT NOT NULL,
    summary   TEXT NOT NULL
);
`

// Entry is one published report. Paths are relative to the public directory.
type Entry struct {
	Date     time.Time `json:"date"`
	Results  int       `json:"results"`
	PDFPath  string    `json:"pdf"`
	PagePath string    `json:"page"`
	Summary  string    `json:"summary"`
}

// Day is Date formatted YYYY-MM-DD.
func (e Entry) Day() string {
	return e.Date.Format(dateLayout)
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, eris.Wrapf(err, "archive: create %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "archive: open %s", path)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "archive: create schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts e, replacing any earlier entry for the same date.
func (s *Store) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO reports (date, results, pdf_path, page_path, summary)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(date) DO UPDATE SET
    results = excluded.results,
    pdf_path = excluded.pdf_path,
    page_path = excluded.page_path,
    summary = excluded.summary`,
		e.Day(), e.Results, e.PDFPath, e.PagePath, e.Summary)
	if err != nil {
		return eris.Wrapf(err, "archive: record %s", e.Day())
	}
	return nil
}

// List returns every entry, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, results, pdf_path, page_path, summary FROM reports ORDER BY date DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "archive: list")
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e   Entry
			day string
		)
		if err := rows.Scan(&day, &e.Results, &e.PDFPath, &e.PagePath, &e.Summary); err != nil {
			return nil, eris.Wrap(err, "archive: scan")
		}
		if e.Date, err = time.Parse(dateLayout, day); err != nil {
			return nil, eris.Wrapf(err, "archive: bad date %q", day)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "archive: list")
	}
	return entries, nil
}
