package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

const defaultRecentLimit = 20

type invocationRow struct {
	bun.BaseModel `bun:"table:tool_invocations,alias:ti"`

	ID         int64          `bun:"id,pk,autoincrement"`
	SessionID  string         `bun:"session_id,notnull"`
	CycleID    string         `bun:"cycle_id,notnull"`
	Cycle      int            `bun:"cycle,notnull"`
	Tool       string         `bun:"tool,notnull"`
	Args       map[string]any `bun:"args,type:jsonb"`
	OK         bool           `bun:"ok,notnull"`
	ErrorKind  string         `bun:"error_kind,nullzero"`
	Message    string         `bun:"message,nullzero"`
	DurationMS int64          `bun:"duration_ms,notnull"`
	At         time.Time      `bun:"at,notnull"`
}

func toRow(rec contractx.InvocationRecord) invocationRow {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	return invocationRow{
		SessionID:  rec.SessionID,
		CycleID:    rec.CycleID,
		Cycle:      rec.Cycle,
		Tool:       rec.Tool,
		Args:       rec.Args,
		OK:         rec.OK,
		ErrorKind:  string(rec.ErrorKind),
		Message:    rec.Message,
		DurationMS: rec.Duration.Milliseconds(),
		At:         at.UTC(),
	}
}

func (r invocationRow) record() contractx.InvocationRecord {
	return contractx.InvocationRecord{
		SessionID: r.SessionID,
		CycleID:   r.CycleID,
		Cycle:     r.Cycle,
		Tool:      r.Tool,
		Args:      r.Args,
		OK:        r.OK,
		ErrorKind: contractx.ErrorKind(r.ErrorKind),
		Message:   r.Message,
		Duration:  time.Duration(r.DurationMS) * time.Millisecond,
		At:        r.At,
	}
}

// PostgresSink writes one row per tool invocation to tool_invocations.
type PostgresSink struct {
	db *bun.DB
}

var _ contractx.AuditSink = (*PostgresSink)(nil)

// NewDB builds a bun handle for dsn. It does not connect.
func NewDB(dsn string) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: audit dsn is required", contractx.ErrValidation)
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// OpenPostgres connects, creates the table if needed and returns the sink.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := NewDB(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: ping postgres: %w", err)
	}

	sink := NewPostgresSink(db)
	if err := sink.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

func NewPostgresSink(db *bun.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) createTable() *bun.CreateTableQuery {
	return s.db.NewCreateTable().Model((*invocationRow)(nil)).IfNotExists()
}

func (s *PostgresSink) Migrate(ctx context.Context) error {
	if _, err := s.createTable().Exec(ctx); err != nil {
		return fmt.Errorf("audit: create tool_invocations: %w", err)
	}
	return nil
}

func (s *PostgresSink) insert(rec contractx.InvocationRecord) *bun.InsertQuery {
	row := toRow(rec)
	return s.db.NewInsert().Model(&row)
}

func (s *PostgresSink) RecordInvocation(ctx context.Context, rec contractx.InvocationRecord) error {
	if _, err := s.insert(rec).Exec(ctx); err != nil {
		return fmt.Errorf("audit: insert invocation tool=%s: %w", rec.Tool, err)
	}
	return nil
}

func (s *PostgresSink) recentQuery(rows *[]invocationRow, sessionID string, limit int) *bun.SelectQuery {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return s.db.NewSelect().
		Model(rows).
		Where("session_id = ?", sessionID).
		OrderExpr("id DESC").
		Limit(limit)
}

// Recent returns the latest invocations of a session, newest first.
func (s *PostgresSink) Recent(ctx context.Context, sessionID string, limit int) ([]contractx.InvocationRecord, error) {
	var rows []invocationRow
	if err := s.recentQuery(&rows, sessionID, limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("audit: select recent invocations: %w", err)
	}
	out := make([]contractx.InvocationRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
