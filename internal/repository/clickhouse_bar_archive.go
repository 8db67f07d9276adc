package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockDash/internal/domain/models"
	domrepo "StockDash/internal/domain/repository"
	pkgch "StockDash/pkg/clickhouse"
	applogger "StockDash/pkg/logger"
)

// insertChunk bounds the rows sent per INSERT.
const insertChunk = 2000

// CHBarArchive implements BarArchive backed by ClickHouse. Rows are keyed by
// (symbol, date); re-fetching a day replaces the earlier copy.
type CHBarArchive struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.BarArchive = (*CHBarArchive)(nil)

func NewCHBarArchive(ch *pkgch.Client, table string, l *applogger.Logger) *CHBarArchive {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHBarArchive{
		ch:    ch,
		db:    ch.DB(),
		table: qualifiedTable(ch.Database(), table),
		l:     l.With(applogger.String("component", "bar_archive")),
	}
}

// Init creates the archive table if needed.
func (s *CHBarArchive) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, schemaStatements(s.table))
}

func (s *CHBarArchive) StoreSeries(ctx context.Context, series *models.PriceSeries) error {
	if series.Empty() {
		return nil
	}
	start := time.Now()
	fetchedAt := start.UTC()
	symbol := strings.ToUpper(strings.TrimSpace(series.Symbol))

	for lo := 0; lo < len(series.Bars); lo += insertChunk {
		hi := lo + insertChunk
		if hi > len(series.Bars) {
			hi = len(series.Bars)
		}
		q, args := insertStatement(s.table, symbol, fetchedAt, series.Bars[lo:hi])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store_series error",
				applogger.String("symbol", symbol),
				applogger.Int("rows", hi-lo),
				applogger.Error(err),
			)
			return fmt.Errorf("store series %s: %w", symbol, err)
		}
	}

	s.l.Debug("clickhouse store_series ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(series.Bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// Query returns archived bars for symbol in [from, to], ascending. Zero
// bounds are open; limit keeps the most recent bars.
func (s *CHBarArchive) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.PriceBar, error) {
	start := time.Now()
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	q, args := selectStatement(s.table, symbol, from, to, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse query_bars error", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, 256)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = b.Date.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	s.l.Debug("clickhouse query_bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHBarArchive) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHBarArchive) Close() error {
	return s.ch.Close()
}

func qualifiedTable(database, table string) string {
	if strings.Contains(table, ".") || database == "" {
		return table
	}
	return database + "." + table
}

func schemaStatements(table string) []string {
	stmts := make([]string, 0, 2)
	if db, _, ok := strings.Cut(table, "."); ok {
		stmts = append(stmts, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db))
	}
	stmts = append(stmts, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol     LowCardinality(String),
			date       Date,
			open       Float64,
			high       Float64,
			low        Float64,
			close      Float64,
			volume     Float64,
			fetched_at DateTime
		)
		ENGINE = ReplacingMergeTree(fetched_at)
		ORDER BY (symbol, date)
	`, table))
	return stmts
}

func insertStatement(table, symbol string, fetchedAt time.Time, bars []models.PriceBar) (string, []interface{}) {
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*8)
	for _, b := range bars {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, fetchedAt)
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, date, open, high, low, close, volume, fetched_at) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

func selectStatement(table, symbol string, from, to time.Time, limit int) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT date, open, high, low, close, volume FROM %s FINAL WHERE symbol = ?", table)
	args := []interface{}{symbol}
	if !from.IsZero() {
		b.WriteString(" AND date >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		b.WriteString(" AND date <= ?")
		args = append(args, to)
	}
	b.WriteString(" ORDER BY date DESC")
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return b.String(), args
}
