// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"kassa/internal/core/appctx"
	"kassa/internal/core/id"
)

// CompressionAlgo specifies the compression algorithm used for a payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is a single audit log row. Large change payloads (a sale with
// many lines, a full adjustment snapshot) are stored zstd-compressed.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	CompanyID         string          `db:"company_id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	UserID            string          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService records who changed what. Implements the AuditLog collaborator
// of the sale and stock services.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

// Record logs a change. Caller identity and company come from the context.
// Runs on the ambient transaction when one is present, so an audit row never
// outlives a rolled back change.
func (s *AuditService) Record(ctx context.Context, entityType string, entityID id.ID, action string, changes any) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	entry := AuditEntry{
		ID:              id.New(),
		EntityType:      entityType,
		EntityID:        entityID,
		Action:          action,
		Changes:         changesJSON,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}

	if user := appctx.GetUser(ctx); user != nil {
		entry.UserID = user.UserID
		entry.CompanyID = user.CompanyID
	}

	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO sys_audit (
			id, company_id, entity_type, entity_id, action, user_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql,
		entry.ID, entry.CompanyID, entry.EntityType, entry.EntityID,
		entry.Action, entry.UserID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)

	return err
}

// GetEntityHistory retrieves audit history for an entity, newest first.
func (s *AuditService) GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	sql := `
		SELECT id, company_id, entity_type, entity_id, action, user_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.CompanyID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.ChangesCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress changes: %w", err)
			}
			e.Changes = decompressed
			e.ChangesCompressed = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
