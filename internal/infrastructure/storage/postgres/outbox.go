package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kassa/internal/core/id"
	"kassa/internal/events"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage is one durable event record. The live WebSocket fan-out is
// fire-and-forget; the outbox is what downstream consumers replay from.
type OutboxMessage struct {
	ID          id.ID        `db:"id"`
	CompanyID   id.ID        `db:"company_id"`
	EventType   string       `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Status      OutboxStatus `db:"status"`
	RetryCount  int          `db:"retry_count"`
	LastError   *string      `db:"last_error"`
	NextRetryAt *time.Time   `db:"next_retry_at"`
	CreatedAt   time.Time    `db:"created_at"`
	PublishedAt *time.Time   `db:"published_at"`
}

// OutboxPublisher writes events to the outbox table.
type OutboxPublisher struct {
	txManager *TxManager
}

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// PublishBatch writes the events to the outbox inside the current
// transaction. MUST be called inside a transaction context: that is what
// makes the events exactly as durable as the change they describe.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, evs []events.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}
	if len(evs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()

	for _, ev := range evs {
		payloadBytes, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}

		batch.Queue(`
			INSERT INTO sys_outbox (id, company_id, event_type, payload, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id.New(), ev.CompanyID, string(ev.Kind), payloadBytes, OutboxStatusPending, now)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range evs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert outbox message: %w", err)
		}
	}

	return nil
}

// OutboxHandler delivers one outbox message to its destination.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxRelay reads pending messages and hands them to the handler. Run by
// the relay worker, safe to run in several replicas thanks to SKIP LOCKED.
type OutboxRelay struct {
	pool      *pgxpool.Pool
	batchSize int
	handler   OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(pool *pgxpool.Pool, batchSize int, handler OutboxHandler) *OutboxRelay {
	return &OutboxRelay{
		pool:      pool,
		batchSize: batchSize,
		handler:   handler,
	}
}

// ProcessBatch fetches and processes pending messages.
// Returns the number of successfully delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		err := rows.Scan(
			&msg.ID, &msg.CompanyID, &msg.EventType, &msg.Payload, &msg.Status,
			&msg.RetryCount, &msg.LastError, &msg.NextRetryAt,
			&msg.CreatedAt, &msg.PublishedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox messages: %w", err)
	}

	processed := 0
	for _, msg := range messages {
		if err := r.processMessage(ctx, msg); err != nil {
			continue
		}
		processed++
	}

	return processed, nil
}

func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage) error {
	err := r.handler.Handle(ctx, msg)

	if err != nil {
		// Linear backoff, a minute per attempt; five strikes and out.
		nextRetry := time.Now().Add(time.Duration(msg.RetryCount+1) * time.Minute)
		errStr := err.Error()

		_, updateErr := r.pool.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count >= 5 THEN $3 ELSE status END
			WHERE id = $4
		`, errStr, nextRetry, OutboxStatusFailed, msg.ID)

		if updateErr != nil {
			return fmt.Errorf("update failed message: %w", updateErr)
		}
		return err
	}

	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, OutboxStatusPublished, now, msg.ID)

	return err
}

// PurgePublished deletes delivered messages older than the retention window.
func (r *OutboxRelay) PurgePublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM sys_outbox
		WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}

	return result.RowsAffected(), nil
}
