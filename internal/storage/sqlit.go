package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"portfolioSharpe/internal/finance"
)

const dayLayout = "2006-01-02"

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

// PriceStore joins price series on date inside a SQLite database.
type PriceStore struct{ db DB }

// OpenSQLite opens a sqlite3 database. In-memory databases are private to a
// connection, so the pool is pinned to one.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// OpenMemory opens a private in-memory price store with its schema in place.
func OpenMemory(ctx context.Context) (*PriceStore, error) {
	db, err := OpenSQLite("file::memory:?_fk=1")
	if err != nil {
		return nil, err
	}
	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewPriceStore(db), nil
}

func InitSchema(ctx context.Context, db DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS prices(
		symbol TEXT NOT NULL, day TEXT NOT NULL, close REAL NOT NULL,
		PRIMARY KEY(symbol, day)
	)`)
	return err
}

func NewPriceStore(db DB) *PriceStore { return &PriceStore{db: db} }

func (s *PriceStore) Close() error { return s.db.Close() }

// Insert stores one series. A date repeated within the series is rejected.
func (s *PriceStore) Insert(ctx context.Context, series *finance.PriceSeries) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO prices(symbol,day,close) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range series.Points {
		day := p.Date.Format(dayLayout)
		if _, err := stmt.ExecContext(ctx, series.Symbol, day, p.Close); err != nil {
			if isDuplicateKey(err) {
				return &finance.InvalidInputError{Reason: fmt.Sprintf("%s: duplicate date %s", series.Symbol, day)}
			}
			return fmt.Errorf("insert %s %s: %w", series.Symbol, day, err)
		}
	}
	return tx.Commit()
}

// isDuplicateKey reports whether err is a primary key or unique constraint
// violation.
func isDuplicateKey(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// JoinResult is the aligned price table plus the number of dates that were
// present for some but not all symbols.
type JoinResult struct {
	Prices      *finance.AlignedPrices
	DroppedDays int
}

// Aligned inner-joins the stored series on date, ordered ascending.
// Columns follow the order of symbols.
func (s *PriceStore) Aligned(ctx context.Context, symbols []string) (*JoinResult, error) {
	if len(symbols) == 0 {
		return nil, &finance.InvalidInputError{Reason: "no symbols to join"}
	}
	col := make(map[string]int, len(symbols))
	symArgs := make([]any, 0, len(symbols))
	for i, sym := range symbols {
		if _, dup := col[sym]; dup {
			return nil, &finance.InvalidInputError{Reason: "duplicate symbol: " + sym}
		}
		col[sym] = i
		symArgs = append(symArgs, sym)
	}
	in := strings.TrimSuffix(strings.Repeat("?,", len(symbols)), ",")

	totalDays, err := s.countDays(ctx, in, symArgs)
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, 2*len(symArgs)+1)
	args = append(args, symArgs...)
	args = append(args, symArgs...)
	args = append(args, len(symbols))
	rows, err := s.db.QueryContext(ctx, `SELECT day, symbol, close FROM prices
		WHERE symbol IN (`+in+`) AND day IN (
			SELECT day FROM prices WHERE symbol IN (`+in+`)
			GROUP BY day HAVING COUNT(DISTINCT symbol) = ?)
		ORDER BY day ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &finance.AlignedPrices{Symbols: append([]string(nil), symbols...)}
	lastDay := ""
	for rows.Next() {
		var day, sym string
		var closePrice float64
		if err := rows.Scan(&day, &sym, &closePrice); err != nil {
			return nil, err
		}
		if day != lastDay {
			t, err := time.Parse(dayLayout, day)
			if err != nil {
				return nil, fmt.Errorf("stored day %q: %w", day, err)
			}
			out.Dates = append(out.Dates, t)
			out.Closes = append(out.Closes, make([]float64, len(symbols)))
			lastDay = day
		}
		out.Closes[len(out.Closes)-1][col[sym]] = closePrice
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out.Dates) < 2 {
		return nil, &finance.InvalidInputError{Reason: fmt.Sprintf("non-overlapping date ranges: %d common dates across %s",
			len(out.Dates), strings.Join(symbols, ", "))}
	}
	return &JoinResult{Prices: out, DroppedDays: totalDays - len(out.Dates)}, nil
}

func (s *PriceStore) countDays(ctx context.Context, in string, symArgs []any) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT COUNT(DISTINCT day) FROM prices WHERE symbol IN (`+in+`)`, symArgs...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}
