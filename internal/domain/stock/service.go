package stock

import (
	"context"

	"kassa/internal/core/appctx"
	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/core/tx"
	"kassa/internal/events"
	"kassa/pkg/logger"
)

// AuditLog records ledger mutations for the audit trail.
type AuditLog interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action string, changes any) error
}

// Service is the single writer path for stock quantities.
// ApplyDelta runs inside the caller's transaction (the sale coordinator);
// SetAbsolute opens its own.
type Service struct {
	repo      Repository
	txManager tx.Manager
	publisher events.Publisher
	audit     AuditLog
}

// NewService creates a new stock ledger service.
// publisher may be events.NopPublisher; audit may be nil.
func NewService(repo Repository, txManager tx.Manager, publisher events.Publisher, audit AuditLog) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		publisher: publisher,
		audit:     audit,
	}
}

// ApplyDeltaInput describes one signed mutation of a stock record.
type ApplyDeltaInput struct {
	ProductID id.ID
	StoreID   id.ID
	// Delta is the signed quantity: positive receives stock, negative issues it.
	Delta  int64
	UserID id.ID
	// ProductName is carried for error messages and low-stock events; the
	// ledger itself does not know the catalog.
	ProductName string
	Reason      string
	SaleID      *id.ID
	Notes       string
}

// ApplyDelta mutates one stock record and appends the matching movement.
// Must execute inside the caller's transaction: the record is locked with
// FOR UPDATE, the availability check and the write happen against the locked
// row. An OUT movement that would drive the quantity negative fails with
// INSUFFICIENT_STOCK and nothing is written.
//
// Notifications are queued on buf, not published; the caller flushes the
// buffer after its transaction commits.
func (s *Service) ApplyDelta(ctx context.Context, in ApplyDeltaInput, buf *events.Buffer) (Change, error) {
	if in.Delta == 0 {
		return Change{}, apperror.NewValidation("delta must be non-zero")
	}

	rec, err := s.repo.GetForUpdate(ctx, in.ProductID, in.StoreID)
	if err != nil {
		return Change{}, err
	}

	newQuantity := rec.Quantity + in.Delta
	if newQuantity < 0 {
		name := in.ProductName
		if name == "" {
			name = in.ProductID.String()
		}
		return Change{}, apperror.NewInsufficientStock(name, -in.Delta, rec.Quantity)
	}

	if err := s.repo.SetQuantity(ctx, in.ProductID, in.StoreID, newQuantity); err != nil {
		return Change{}, err
	}

	movement := NewMovement(rec, in.Delta, in.UserID, in.Reason, in.SaleID, in.Notes)
	if err := s.repo.CreateMovement(ctx, movement); err != nil {
		return Change{}, err
	}

	change := Change{OldQuantity: rec.Quantity, NewQuantity: newQuantity}
	s.queueEvents(rec, in, change, buf)

	return change, nil
}

// SetAbsoluteInput describes a manual inventory correction.
type SetAbsoluteInput struct {
	ProductID   id.ID
	StoreID     id.ID
	NewQuantity int64
	UserID      id.ID
	ProductName string
	Notes       string
}

// SetAbsolute corrects a record to an absolute quantity. The signed delta is
// computed against the locked row and recorded as an "adjustment" movement.
// A zero delta is a tolerated no-op. Runs in its own transaction; events are
// published best-effort after commit.
func (s *Service) SetAbsolute(ctx context.Context, in SetAbsoluteInput) (Change, error) {
	if in.NewQuantity < 0 {
		return Change{}, apperror.NewValidation("quantity must not be negative")
	}

	var change Change
	buf := events.NewBuffer()

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetForUpdate(ctx, in.ProductID, in.StoreID)
		if err != nil {
			return err
		}

		delta := in.NewQuantity - rec.Quantity
		if delta == 0 {
			change = Change{OldQuantity: rec.Quantity, NewQuantity: rec.Quantity}
			return nil
		}

		if err := s.repo.SetQuantity(ctx, in.ProductID, in.StoreID, in.NewQuantity); err != nil {
			return err
		}

		movement := NewMovement(rec, delta, in.UserID, ReasonAdjustment, nil, in.Notes)
		if err := s.repo.CreateMovement(ctx, movement); err != nil {
			return err
		}

		change = Change{OldQuantity: rec.Quantity, NewQuantity: in.NewQuantity}
		s.queueEvents(rec, ApplyDeltaInput{
			ProductID:   in.ProductID,
			StoreID:     in.StoreID,
			ProductName: in.ProductName,
			Reason:      ReasonAdjustment,
		}, change, buf)

		if s.audit != nil {
			if err := s.audit.Record(ctx, "stock_record", movement.ID, "adjust", map[string]any{
				"productId":   in.ProductID,
				"storeId":     in.StoreID,
				"oldQuantity": change.OldQuantity,
				"newQuantity": change.NewQuantity,
				"notes":       in.Notes,
			}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return Change{}, err
	}

	buf.Flush(ctx, s.publisher)

	if change.OldQuantity != change.NewQuantity {
		logger.Info(ctx, "stock adjusted",
			"product_id", in.ProductID,
			"store_id", in.StoreID,
			"old", change.OldQuantity,
			"new", change.NewQuantity,
		)
	}

	return change, nil
}

// queueEvents enqueues the stock-changed notification and, when the new
// quantity is at or under the minimum, the low-stock alert.
func (s *Service) queueEvents(rec *Record, in ApplyDeltaInput, change Change, buf *events.Buffer) {
	if buf == nil {
		return
	}

	buf.Add(events.Event{
		Kind:      events.KindStockUpdate,
		CompanyID: rec.CompanyID,
		Payload: events.StockUpdatePayload{
			ProductID:   rec.ProductID,
			StoreID:     rec.StoreID,
			OldQuantity: change.OldQuantity,
			NewQuantity: change.NewQuantity,
			Reason:      in.Reason,
		},
	})

	// MinQuantity 0 means no threshold is configured.
	if rec.MinQuantity > 0 && change.NewQuantity <= rec.MinQuantity {
		buf.Add(events.Event{
			Kind:      events.KindStockLow,
			CompanyID: rec.CompanyID,
			Payload: events.StockLowPayload{
				ProductID:       rec.ProductID,
				StoreID:         rec.StoreID,
				ProductName:     in.ProductName,
				CurrentQuantity: change.NewQuantity,
				MinQuantity:     rec.MinQuantity,
			},
		})
	}
}

// Get returns one stock record.
func (s *Service) Get(ctx context.Context, productID, storeID id.ID) (*Record, error) {
	return s.repo.Get(ctx, productID, storeID)
}

// ListByStore returns all stock records of a store.
func (s *Service) ListByStore(ctx context.Context, storeID id.ID) ([]*Record, error) {
	return s.repo.ListByStore(ctx, storeID)
}

// Movements returns movement history scoped to the caller's company unless
// the caller is a super admin.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]*Movement, error) {
	if user := appctx.GetUser(ctx); user != nil && !user.IsSuperAdmin {
		companyID, err := id.Parse(user.CompanyID)
		if err != nil {
			return nil, apperror.NewUnauthorized("invalid company in token")
		}
		filter.CompanyID = &companyID
	}

	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}

	return s.repo.ListMovements(ctx, filter)
}
