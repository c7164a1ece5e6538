package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// flowColumns pins each flow's column set. The schema is fixed, so a flow
// store only accepts batches whose features match its table.
var flowColumns = map[string][]domain.Feature{
	domain.FlowHindcast: domain.DecomposedFeatures,
	domain.FlowForecast: domain.ForecastFeatures,
}

// SQLite archives both flows in one database file, one wide table per flow.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the archive database at path, creating the file and its
// directory as needed, and applies the schema. WAL keeps concurrent loads
// (the validate tool) from blocking the writer.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging archive database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying archive schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// Flow returns the store bound to one flow's table.
func (s *SQLite) Flow(flow string) (*SQLiteFlow, error) {
	features, ok := flowColumns[flow]
	if !ok {
		return nil, fmt.Errorf("unknown archive flow %q", flow)
	}
	return &SQLiteFlow{db: s.db, table: flow, features: features}, nil
}

// SQLiteFlow reads and writes one flow's table.
type SQLiteFlow struct {
	db       *sql.DB
	table    string
	features []domain.Feature
}

// Store merges the batch into the flow's table inside one transaction.
// Existing rows at or after the batch's first timestamp are dropped in its
// favor. An empty batch is a no-op.
func (f *SQLiteFlow) Store(ctx context.Context, t *domain.Table) error {
	if t == nil || t.Len() == 0 {
		return nil
	}
	if !featuresEqual(t.Features(), f.features) {
		return fmt.Errorf("archive table %s: batch features %v do not match columns %v",
			f.table, t.Features(), f.features)
	}

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning archive transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	first := t.Rows()[0].Time.UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+f.table+" WHERE time >= ?", first); err != nil {
		return fmt.Errorf("clearing overlap in %s: %w", f.table, err)
	}

	stmt, err := tx.PrepareContext(ctx, f.insertSQL())
	if err != nil {
		return fmt.Errorf("preparing archive insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(f.features)+1)
	for _, r := range t.Rows() {
		args[0] = r.Time.UTC().Format(time.RFC3339)
		for j, v := range r.Values {
			args[j+1] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting into %s: %w", f.table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing archive transaction: %w", err)
	}
	return nil
}

// Load reads the whole flow sorted ascending.
func (f *SQLiteFlow) Load(ctx context.Context) (*domain.Table, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY time", strings.Join(f.columns(), ", "), f.table)
	rows, err := f.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading archive table %s: %w", f.table, err)
	}
	defer rows.Close()

	var ts string
	values := make([]float64, len(f.features))
	dest := make([]any, 0, len(f.features)+1)
	dest = append(dest, &ts)
	for j := range values {
		dest = append(dest, &values[j])
	}

	b := domain.NewBuilder(f.features)
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		at, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("archive table %s timestamp %q: %w", f.table, ts, err)
		}
		for j, feat := range f.features {
			b.Set(at, feat, values[j])
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading archive table %s: %w", f.table, err)
	}
	return b.Build(), nil
}

func (f *SQLiteFlow) columns() []string {
	cols := make([]string, 0, len(f.features)+1)
	cols = append(cols, "time")
	for _, feat := range f.features {
		cols = append(cols, string(feat))
	}
	return cols
}

func (f *SQLiteFlow) insertSQL() string {
	cols := f.columns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", f.table, strings.Join(cols, ", "), marks)
}
