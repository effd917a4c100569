package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/infrastructure/resilience"
	"ChatDigest/internal/ports"
)

const reportsTable = "chat_digest_reports"

var reportZone = time.FixedZone("UTC+9", 9*60*60)

const schema = `CREATE TABLE IF NOT EXISTS chat_digest_reports (
    id            BIGSERIAL PRIMARY KEY,
    run_id        TEXT        NOT NULL,
    report_date   DATE        NOT NULL,
    provenance    TEXT        NOT NULL,
    source_id     TEXT        NOT NULL DEFAULT '',
    mode          TEXT        NOT NULL,
    summary       TEXT        NOT NULL,
    message_count INTEGER     NOT NULL DEFAULT 0,
    generated_at  TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (report_date, provenance)
)`

// PostgresRepository archives generated reports into Postgres.
type PostgresRepository struct {
	db    *sql.DB
	retry resilience.Config
	psql  sq.StatementBuilderType
}

var (
	_ ports.ReportArchive = (*PostgresRepository)(nil)
	_ ports.Sink          = (*PostgresRepository)(nil)
)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB, retry resilience.Config) *PostgresRepository {
	return &PostgresRepository{
		db:    db,
		retry: retry,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the archive table when it is missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create %s: %w", reportsTable, err)
	}
	return nil
}

// SaveReport upserts the report keyed by its day (UTC+9) and provenance.
func (r *PostgresRepository) SaveReport(ctx context.Context, report domain.Report) error {
	if r.db == nil {
		return nil
	}

	generated := report.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	query, args, err := r.psql.
		Insert(reportsTable).
		Columns("run_id", "report_date", "provenance", "source_id", "mode", "summary", "message_count", "generated_at").
		Values(report.RunID, generated.In(reportZone).Format("2006-01-02"), report.Provenance, report.SourceID,
			string(report.Mode), report.Text, report.Messages, generated.UTC()).
		Suffix(`ON CONFLICT (report_date, provenance) DO UPDATE
              SET run_id = EXCLUDED.run_id,
                  summary = EXCLUDED.summary,
                  message_count = EXCLUDED.message_count,
                  generated_at = EXCLUDED.generated_at,
                  updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	return resilience.Do(ctx, r.retry, func() error {
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return classify(fmt.Errorf("upsert report: %w", err))
		}
		return nil
	})
}

// RecentReports returns the newest reports, most recent first.
func (r *PostgresRepository) RecentReports(ctx context.Context, limit uint64) ([]domain.Report, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := r.psql.
		Select("run_id", "provenance", "source_id", "mode", "summary", "message_count", "generated_at").
		From(reportsTable).
		OrderBy("generated_at DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}

	var result []domain.Report
	for rows.Next() {
		var (
			rep  domain.Report
			mode string
		)
		if err := rows.Scan(&rep.RunID, &rep.Provenance, &rep.SourceID, &mode, &rep.Text, &rep.Messages, &rep.GeneratedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rep.Mode = domain.AggregationMode(mode)
		result = append(result, rep)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// Name identifies the archive in dispatch results.
func (r *PostgresRepository) Name() string { return "archive" }

// ChunkLimit asks for whole reports.
func (r *PostgresRepository) ChunkLimit() int { return ports.WholeReport }

// Deliver archives the report.
func (r *PostgresRepository) Deliver(ctx context.Context, report domain.Report, chunk domain.Chunk) error {
	report.Text = chunk.Text
	return r.SaveReport(ctx, report)
}

// classify stops retries for errors a retry cannot fix: SQL syntax,
// missing objects and privileges (class 42), bad data (class 22).
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "42", "22":
			return &resilience.Permanent{Err: err}
		}
	}
	return err
}
