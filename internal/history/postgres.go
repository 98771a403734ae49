package history

import (
	"context"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresLedger stores publications in a table and reads history from it
type PostgresLedger struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresLedger opens a pool for dsn. table must be a plain identifier.
func NewPostgresLedger(ctx context.Context, cfg model.PostgresConfig) (*PostgresLedger, error) {
	table := cfg.Table
	if table == "" {
		table = "publications"
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresLedger{pool: pool, table: table}, nil
}

// EnsureSchema creates the publications table if missing
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(l.table) {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func schemaStatements(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id           TEXT PRIMARY KEY,
    actor        TEXT NOT NULL DEFAULT '',
    item_id      TEXT NOT NULL,
    image_url    TEXT NOT NULL,
    caption      TEXT NOT NULL,
    permalink    TEXT NOT NULL,
    category     TEXT NOT NULL DEFAULT '',
    publisher    TEXT NOT NULL,
    run_id       TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ NOT NULL
)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_actor_published_idx ON %[1]s (actor, published_at DESC)`, table),
	}
}

func recentQuery(table, actor string, count int) sq.SelectBuilder {
	q := psql.Select("item_id").From(table).OrderBy("published_at DESC").Limit(uint64(count))
	if actor != "" {
		q = q.Where(sq.Eq{"actor": actor})
	}
	return q
}

func insertQuery(table, actor string, pub *model.Publication) sq.InsertBuilder {
	return psql.Insert(table).
		Columns("id", "actor", "item_id", "image_url", "caption", "permalink", "category", "publisher", "run_id", "published_at").
		Values(pub.ID, actor, pub.ItemID, pub.ImageURL, pub.Caption, pub.Permalink, pub.Category, pub.Publisher, pub.RunID, pub.PublishedAt).
		Suffix("ON CONFLICT (id) DO NOTHING")
}

// ListRecent returns the newest count item ids recorded for actor
func (l *PostgresLedger) ListRecent(ctx context.Context, actor string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}

	query, args, err := recentQuery(l.table, actor, count).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return ids, nil
}

// RecordFor returns a recorder that files publications under actor
func (l *PostgresLedger) RecordFor(actor string) *PostgresRecorder {
	return &PostgresRecorder{ledger: l, actor: actor}
}

// Close releases the pool
func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

// PostgresRecorder inserts publications into a PostgresLedger
type PostgresRecorder struct {
	ledger *PostgresLedger
	actor  string
}

// Name identifies the recorder in logs
func (r *PostgresRecorder) Name() string {
	return "postgres"
}

// Record inserts the publication. Re-recording the same publication id is a no-op.
func (r *PostgresRecorder) Record(ctx context.Context, pub *model.Publication) error {
	query, args, err := insertQuery(r.ledger.table, r.actor, pub).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.ledger.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert publication: %w", err)
	}
	return nil
}
