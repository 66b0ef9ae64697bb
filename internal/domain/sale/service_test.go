package sale

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/core/appctx"
	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/core/types"
	"kassa/internal/domain/product"
	"kassa/internal/domain/stock"
	"kassa/internal/events"
)

// --- Mocks ---

type fakeTxManager struct {
	calls int
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type fakeNumerator struct {
	next int
}

func (n *fakeNumerator) NextSaleNumber(ctx context.Context, companyID id.ID) (string, error) {
	n.next++
	return fmt.Sprintf("SALE-TEST-%d", n.next), nil
}

type mockSaleRepo struct {
	created *Sale
	items   []Item

	failCreate error
}

func (m *mockSaleRepo) Create(ctx context.Context, doc *Sale) error {
	if m.failCreate != nil {
		return m.failCreate
	}
	m.created = doc
	return nil
}

func (m *mockSaleRepo) SaveItems(ctx context.Context, saleID id.ID, items []Item) error {
	m.items = items
	return nil
}

func (m *mockSaleRepo) GetByID(ctx context.Context, saleID id.ID) (*Sale, error) {
	if m.created == nil || m.created.ID != saleID {
		return nil, apperror.NewNotFound("sale", saleID)
	}
	return m.created, nil
}

func (m *mockSaleRepo) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	if m.created == nil {
		return ListResult{Items: []*Sale{}}, nil
	}
	if filter.CompanyID != nil && *filter.CompanyID != m.created.CompanyID {
		return ListResult{Items: []*Sale{}}, nil
	}
	return ListResult{Items: []*Sale{m.created}, TotalCount: 1}, nil
}

type mockProductRepo struct {
	products map[id.ID]*product.Product
}

func (m *mockProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := m.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	return p, nil
}

func (m *mockProductRepo) ListByStore(ctx context.Context, companyID, storeID id.ID) ([]*product.StoreProduct, error) {
	return nil, nil
}

type mockStockRepo struct {
	quantities map[id.ID]int64
	movements  []*stock.Movement
	setCalls   int
}

func (m *mockStockRepo) Get(ctx context.Context, productID, storeID id.ID) (*stock.Record, error) {
	qty, ok := m.quantities[productID]
	if !ok {
		return nil, apperror.NewNotFound("stock record", productID)
	}
	return &stock.Record{ProductID: productID, StoreID: storeID, Quantity: qty}, nil
}

func (m *mockStockRepo) GetForUpdate(ctx context.Context, productID, storeID id.ID) (*stock.Record, error) {
	return m.Get(ctx, productID, storeID)
}

func (m *mockStockRepo) SetQuantity(ctx context.Context, productID, storeID id.ID, quantity int64) error {
	m.setCalls++
	m.quantities[productID] = quantity
	return nil
}

func (m *mockStockRepo) CreateMovement(ctx context.Context, mv *stock.Movement) error {
	m.movements = append(m.movements, mv)
	return nil
}

func (m *mockStockRepo) ListByStore(ctx context.Context, storeID id.ID) ([]*stock.Record, error) {
	return nil, nil
}

func (m *mockStockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) ([]*stock.Movement, error) {
	return m.movements, nil
}

type recordingPublisher struct {
	published []events.Event
	fail      error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	if p.fail != nil {
		return p.fail
	}
	p.published = append(p.published, ev)
	return nil
}

type recordingOutbox struct {
	batches [][]events.Event
}

func (o *recordingOutbox) PublishBatch(ctx context.Context, evs []events.Event) error {
	o.batches = append(o.batches, evs)
	return nil
}

// --- Fixture ---

type fixture struct {
	svc       *Service
	repo      *mockSaleRepo
	products  *mockProductRepo
	stockRepo *mockStockRepo
	publisher *recordingPublisher
	outbox    *recordingOutbox
	txManager *fakeTxManager

	companyID id.ID
	storeID   id.ID
	userID    id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      &mockSaleRepo{},
		products:  &mockProductRepo{products: make(map[id.ID]*product.Product)},
		stockRepo: &mockStockRepo{quantities: make(map[id.ID]int64)},
		publisher: &recordingPublisher{},
		outbox:    &recordingOutbox{},
		txManager: &fakeTxManager{},
		companyID: id.New(),
		storeID:   id.New(),
		userID:    id.New(),
	}

	ledger := stock.NewService(f.stockRepo, f.txManager, f.publisher, nil)
	f.svc = NewService(f.repo, f.products, ledger, &fakeNumerator{}, f.txManager, f.publisher, f.outbox, nil)
	return f
}

func (f *fixture) addProduct(name, price, taxRate string, stockQty int64) *product.Product {
	p := &product.Product{
		ID:           id.New(),
		CompanyID:    f.companyID,
		SKU:          "SKU-" + name,
		Name:         name,
		SellingPrice: types.MustMoney(price),
		TaxRate:      types.MustMoney(taxRate),
		Active:       true,
	}
	f.products.products[p.ID] = p
	f.stockRepo.quantities[p.ID] = stockQty
	return p
}

func (f *fixture) ctx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:    f.userID.String(),
		CompanyID: f.companyID.String(),
		StoreID:   f.storeID.String(),
		Email:     "cashier@test",
		Active:    true,
	})
}

// --- Create ---

func TestCreate_ComputesTotalsAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	coffee := f.addProduct("Coffee", "1000", "10", 10)

	doc, err := f.svc.Create(f.ctx(), CreateInput{
		Items:         []CartItem{{ProductID: coffee.ID, Quantity: 2}},
		PaymentMethod: "cash",
	})

	require.NoError(t, err)
	assert.Equal(t, "SALE-TEST-1", doc.SaleNumber)
	assert.True(t, doc.Subtotal.Equal(types.MustMoney("2000")), "subtotal %s", doc.Subtotal)
	assert.True(t, doc.TaxAmount.Equal(types.MustMoney("200")), "tax %s", doc.TaxAmount)
	assert.True(t, doc.Total.Equal(types.MustMoney("2200")), "total %s", doc.Total)

	// Price snapshot on the line.
	require.Len(t, doc.Items, 1)
	assert.True(t, doc.Items[0].UnitPrice.Equal(types.MustMoney("1000")))
	assert.Equal(t, "Coffee", doc.Items[0].ProductName)

	// Header and items persisted, stock decremented with a sale movement.
	assert.Same(t, doc, f.repo.created)
	assert.Len(t, f.repo.items, 1)
	assert.Equal(t, int64(8), f.stockRepo.quantities[coffee.ID])
	require.Len(t, f.stockRepo.movements, 1)
	require.NotNil(t, f.stockRepo.movements[0].SaleID)
	assert.Equal(t, doc.ID, *f.stockRepo.movements[0].SaleID)

	// One stock:update plus the sale:completed summary, fanned out post-commit.
	require.Len(t, f.publisher.published, 2)
	assert.Equal(t, events.KindStockUpdate, f.publisher.published[0].Kind)
	assert.Equal(t, events.KindSaleCompleted, f.publisher.published[1].Kind)

	completed := f.publisher.published[1].Payload.(events.SaleCompletedPayload)
	assert.Equal(t, doc.SaleNumber, completed.SaleNumber)
	assert.True(t, completed.Total.Equal(types.MustMoney("2200")))

	// The same batch went to the durable outbox inside the transaction.
	require.Len(t, f.outbox.batches, 1)
	assert.Len(t, f.outbox.batches[0], 2)
}

func TestCreate_AppliesDiscount(t *testing.T) {
	f := newFixture(t)
	coffee := f.addProduct("Coffee", "1000", "10", 10)

	doc, err := f.svc.Create(f.ctx(), CreateInput{
		Items:         []CartItem{{ProductID: coffee.ID, Quantity: 2}},
		PaymentMethod: "card",
		Discount:      types.MustMoney("200"),
	})

	require.NoError(t, err)
	assert.True(t, doc.Total.Equal(types.MustMoney("2000")), "total %s", doc.Total)
	assert.True(t, doc.Discount.Equal(types.MustMoney("200")))
}

func TestCreate_ShortageRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	coffee := f.addProduct("Coffee", "1000", "10", 10)
	tea := f.addProduct("Tea", "500", "0", 1)

	_, err := f.svc.Create(f.ctx(), CreateInput{
		Items: []CartItem{
			{ProductID: coffee.ID, Quantity: 2},
			{ProductID: tea.ID, Quantity: 3},
		},
		PaymentMethod: "cash",
	})

	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Contains(t, appErr.Message, "Tea", "the first offending line is named")

	// Nothing reaches the fan-out and nothing is announced. The repositories
	// did see writes before the shortage; the real rollback is the
	// transaction's job, exercised against a database elsewhere.
	assert.Empty(t, f.publisher.published)
	assert.Equal(t, 1, f.txManager.calls)
}

func TestCreate_PublisherFailureDoesNotFailSale(t *testing.T) {
	f := newFixture(t)
	coffee := f.addProduct("Coffee", "1000", "10", 10)
	f.publisher.fail = errors.New("hub down")

	doc, err := f.svc.Create(f.ctx(), CreateInput{
		Items:         []CartItem{{ProductID: coffee.ID, Quantity: 1}},
		PaymentMethod: "cash",
	})

	require.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Equal(t, int64(9), f.stockRepo.quantities[coffee.ID])
}

func TestCreate_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.ctx(), CreateInput{
		Items:         []CartItem{{ProductID: id.New(), Quantity: 1}},
		PaymentMethod: "cash",
	})

	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.Empty(t, f.publisher.published)
}

func TestCreate_ForeignCompanyProductIsInvisible(t *testing.T) {
	f := newFixture(t)
	foreign := f.addProduct("Coffee", "1000", "10", 10)
	foreign.CompanyID = id.New()

	_, err := f.svc.Create(f.ctx(), CreateInput{
		Items:         []CartItem{{ProductID: foreign.ID, Quantity: 1}},
		PaymentMethod: "cash",
	})

	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	coffee := f.addProduct("Coffee", "1000", "10", 10)

	tests := []struct {
		name string
		in   CreateInput
		code string
	}{
		{
			name: "empty cart",
			in:   CreateInput{PaymentMethod: "cash"},
			code: apperror.CodeEmptyCart,
		},
		{
			name: "missing payment method",
			in:   CreateInput{Items: []CartItem{{ProductID: coffee.ID, Quantity: 1}}},
			code: apperror.CodeValidation,
		},
		{
			name: "negative discount",
			in: CreateInput{
				Items:         []CartItem{{ProductID: coffee.ID, Quantity: 1}},
				PaymentMethod: "cash",
				Discount:      types.MustMoney("-5"),
			},
			code: apperror.CodeValidation,
		},
		{
			name: "zero quantity line",
			in: CreateInput{
				Items:         []CartItem{{ProductID: coffee.ID, Quantity: 0}},
				PaymentMethod: "cash",
			},
			code: apperror.CodeValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(f.ctx(), tc.in)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tc.code, appErr.Code)

			// Validation failures never open a transaction.
			assert.Equal(t, 0, f.txManager.calls)
		})
	}
}

func TestCreate_NoStoreAssigned(t *testing.T) {
	f := newFixture(t)
	coffee := f.addProduct("Coffee", "1000", "10", 10)

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:    f.userID.String(),
		CompanyID: f.companyID.String(),
		Active:    true,
	})

	_, err := f.svc.Create(ctx, CreateInput{
		Items:         []CartItem{{ProductID: coffee.ID, Quantity: 1}},
		PaymentMethod: "cash",
	})

	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeNoStoreAssigned, appErr.Code)
}

func TestCreate_RequiresUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateInput{
		Items:         []CartItem{{ProductID: id.New(), Quantity: 1}},
		PaymentMethod: "cash",
	})

	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

// --- GetByID / List scoping ---

func TestGetByID_ScopedToCompany(t *testing.T) {
	f := newFixture(t)
	coffee := f.addProduct("Coffee", "1000", "0", 10)

	doc, err := f.svc.Create(f.ctx(), CreateInput{
		Items:         []CartItem{{ProductID: coffee.ID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	got, err := f.svc.GetByID(f.ctx(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	// Another company's user sees not-found, not forbidden.
	otherCtx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:    id.New().String(),
		CompanyID: id.New().String(),
		Active:    true,
	})
	_, err = f.svc.GetByID(otherCtx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	// The observer sees everything.
	adminCtx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:       id.New().String(),
		CompanyID:    id.New().String(),
		IsSuperAdmin: true,
		Active:       true,
	})
	_, err = f.svc.GetByID(adminCtx, doc.ID)
	assert.NoError(t, err)
}

func TestList_ForcesCompanyFilterForNonObservers(t *testing.T) {
	f := newFixture(t)
	coffee := f.addProduct("Coffee", "1000", "0", 10)

	_, err := f.svc.Create(f.ctx(), CreateInput{
		Items:         []CartItem{{ProductID: coffee.ID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	// A foreign caller asking for this company's sales still gets their own
	// (empty) scope.
	otherCtx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:    id.New().String(),
		CompanyID: id.New().String(),
		Active:    true,
	})
	res, err := f.svc.List(otherCtx, ListFilter{CompanyID: &f.companyID})
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	res, err = f.svc.List(f.ctx(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}
