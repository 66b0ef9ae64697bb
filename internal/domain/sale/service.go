package sale

import (
	"context"

	"kassa/internal/core/appctx"
	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/core/tx"
	"kassa/internal/core/types"
	"kassa/internal/domain/product"
	"kassa/internal/domain/stock"
	"kassa/internal/events"
	"kassa/pkg/logger"
)

// Numerator generates unique, human-facing sale numbers.
type Numerator interface {
	NextSaleNumber(ctx context.Context, companyID id.ID) (string, error)
}

// OutboxWriter persists events durably inside the current transaction.
// Optional: live fan-out does not depend on it.
type OutboxWriter interface {
	PublishBatch(ctx context.Context, evs []events.Event) error
}

// AuditLog records sale creation for the audit trail.
type AuditLog interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action string, changes any) error
}

// Service coordinates the sale transaction: one atomic unit covering the sale
// header, its items, the stock decrements and their movements. Event fan-out
// happens strictly after commit and never affects the outcome.
type Service struct {
	repo      Repository
	products  product.Repository
	ledger    *stock.Service
	numerator Numerator
	txManager tx.Manager
	publisher events.Publisher
	outbox    OutboxWriter
	audit     AuditLog
}

// NewService creates the sale coordinator.
// publisher may be events.NopPublisher; outbox and audit may be nil.
func NewService(
	repo Repository,
	products product.Repository,
	ledger *stock.Service,
	numerator Numerator,
	txManager tx.Manager,
	publisher events.Publisher,
	outbox OutboxWriter,
	audit AuditLog,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		products:  products,
		ledger:    ledger,
		numerator: numerator,
		txManager: txManager,
		publisher: publisher,
		outbox:    outbox,
		audit:     audit,
	}
}

// CartItem is one requested line.
type CartItem struct {
	ProductID id.ID
	Quantity  int64
}

// CreateInput is the cart submitted by the POS.
type CreateInput struct {
	Items            []CartItem
	PaymentMethod    string
	PaymentReference string
	CustomerName     string
	CustomerPhone    string
	CustomerEmail    string
	Notes            string
	Discount         types.Money
}

// Create validates the cart and executes the sale as one transaction.
// Line items are processed in input order; the first shortage reported is the
// first offending line. On any failure the whole transaction rolls back:
// no sale, no items, no movements, no quantity change.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Sale, error) {
	user := appctx.GetUser(ctx)
	if user == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}

	if len(in.Items) == 0 {
		return nil, apperror.NewEmptyCart()
	}
	if user.StoreID == "" {
		return nil, apperror.NewNoStoreAssigned()
	}
	if in.PaymentMethod == "" {
		return nil, apperror.NewValidation("payment method is required").
			WithDetail("field", "paymentMethod")
	}
	if in.Discount.IsNegative() {
		return nil, apperror.NewValidation("discount must not be negative").
			WithDetail("field", "discount")
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, apperror.NewValidation("quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
	}

	companyID, err := id.Parse(user.CompanyID)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid company in token")
	}
	storeID, err := id.Parse(user.StoreID)
	if err != nil {
		return nil, apperror.NewNoStoreAssigned()
	}
	userID, err := id.Parse(user.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid user in token")
	}

	var result *Sale
	buf := events.NewBuffer()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numerator.NextSaleNumber(ctx, companyID)
		if err != nil {
			return err
		}

		doc := NewSale(number, companyID, storeID, userID)
		doc.PaymentMethod = in.PaymentMethod
		doc.PaymentReference = in.PaymentReference
		doc.CustomerName = in.CustomerName
		doc.CustomerPhone = in.CustomerPhone
		doc.CustomerEmail = in.CustomerEmail
		doc.Notes = in.Notes

		for _, line := range in.Items {
			p, err := s.products.GetByID(ctx, line.ProductID)
			if err != nil {
				if apperror.IsNotFound(err) {
					return apperror.NewProductNotFound(line.ProductID)
				}
				return err
			}
			// Products of other companies are invisible to this tenant.
			if p.CompanyID != companyID {
				return apperror.NewProductNotFound(line.ProductID)
			}

			doc.AddLine(p, line.Quantity)
		}
		doc.Finalize(in.Discount)

		if err := s.repo.Create(ctx, doc); err != nil {
			return err
		}
		if err := s.repo.SaveItems(ctx, doc.ID, doc.Items); err != nil {
			return err
		}

		// Decrement stock per line inside the same transaction. A shortage
		// here rolls back the sale just inserted.
		for _, item := range doc.Items {
			_, err := s.ledger.ApplyDelta(ctx, stock.ApplyDeltaInput{
				ProductID:   item.ProductID,
				StoreID:     storeID,
				Delta:       -item.Quantity,
				UserID:      userID,
				ProductName: item.ProductName,
				Reason:      stock.ReasonSale,
				SaleID:      &doc.ID,
			}, buf)
			if err != nil {
				return err
			}
		}

		buf.Add(saleCompletedEvent(doc))

		if s.outbox != nil {
			if err := s.outbox.PublishBatch(ctx, buf.Events()); err != nil {
				return err
			}
		}

		if s.audit != nil {
			if err := s.audit.Record(ctx, "sale", doc.ID, "create", doc); err != nil {
				return err
			}
		}

		result = doc
		return nil
	})
	if err != nil {
		buf = events.NewBuffer() // rolled back, nothing to announce
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.NewTransactionFailure(err)
	}

	// Fan-out is observability, not consistency: the sale is committed no
	// matter what happens here.
	buf.Flush(ctx, s.publisher)

	logger.Info(ctx, "sale completed",
		"sale_id", result.ID,
		"sale_number", result.SaleNumber,
		"store_id", storeID,
		"total", result.Total,
		"lines", len(result.Items),
	)

	return result, nil
}

// GetByID returns one sale, scoped to the caller's company unless the caller
// is the cross-company observer.
func (s *Service) GetByID(ctx context.Context, saleID id.ID) (*Sale, error) {
	doc, err := s.repo.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}

	if user := appctx.GetUser(ctx); user != nil && !user.IsSuperAdmin {
		if user.CompanyID != doc.CompanyID.String() {
			return nil, apperror.NewNotFound("sale", saleID)
		}
	}

	return doc, nil
}

// List returns a page of sales. Non-observer callers only ever see their own
// company regardless of the filter they pass.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	if user := appctx.GetUser(ctx); user != nil && !user.IsSuperAdmin {
		companyID, err := id.Parse(user.CompanyID)
		if err != nil {
			return ListResult{}, apperror.NewUnauthorized("invalid company in token")
		}
		filter.CompanyID = &companyID
	}

	filter.Normalize()
	return s.repo.List(ctx, filter)
}

func saleCompletedEvent(doc *Sale) events.Event {
	items := make([]events.SaleCompletedItem, len(doc.Items))
	for i, item := range doc.Items {
		items[i] = events.SaleCompletedItem{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Total:       item.Total,
		}
	}

	return events.Event{
		Kind:      events.KindSaleCompleted,
		CompanyID: doc.CompanyID,
		Payload: events.SaleCompletedPayload{
			SaleID:     doc.ID,
			SaleNumber: doc.SaleNumber,
			StoreID:    doc.StoreID,
			Total:      doc.Total,
			Items:      items,
		},
	}
}
