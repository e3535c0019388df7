package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
)

// PostgresHistory is an append-only archive of terminal transitions. It is
// write-only from the scheduler's point of view: nothing is read back at
// startup, so queue state still lives only in memory.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

func NewPostgresHistory(ctx context.Context, databaseURL string) (*PostgresHistory, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}

	history := &PostgresHistory{pool: pool}
	if err := history.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return history, nil
}

func (h *PostgresHistory) Close() {
	h.pool.Close()
}

// RecordTerminal appends one row per terminal transition. An item that fails,
// is retried, and fails again produces one row per failure.
func (h *PostgresHistory) RecordTerminal(ctx context.Context, item domain.Item) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO ingestion_history (
			item_id,
			remote_url,
			local_path,
			external_id,
			status,
			error_message,
			enqueued_at,
			finished_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		item.ID,
		item.Payload.RemoteURL,
		item.Payload.LocalPath,
		item.ExternalID,
		string(item.Status),
		item.ErrorMessage,
		item.CreatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}
	return nil
}

// ensureSchema keeps the archive self-contained so a fresh database works
// without a migration step.
func (h *PostgresHistory) ensureSchema(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS ingestion_history (
	id BIGSERIAL PRIMARY KEY,
	item_id TEXT NOT NULL,
	remote_url TEXT NOT NULL DEFAULT '',
	local_path TEXT NOT NULL DEFAULT '',
	external_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	enqueued_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingestion_history_item ON ingestion_history(item_id);
CREATE INDEX IF NOT EXISTS idx_ingestion_history_status ON ingestion_history(status);`
	if _, err := h.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
