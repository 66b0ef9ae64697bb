package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/events"
)

// --- Mocks ---

type mockRepo struct {
	records   map[string]*Record
	movements []*Movement

	forUpdateCalls int
	failSet        error
}

func key(productID, storeID id.ID) string {
	return productID.String() + "/" + storeID.String()
}

func newMockRepo(records ...*Record) *mockRepo {
	m := &mockRepo{records: make(map[string]*Record)}
	for _, rec := range records {
		m.records[key(rec.ProductID, rec.StoreID)] = rec
	}
	return m
}

func (m *mockRepo) Get(ctx context.Context, productID, storeID id.ID) (*Record, error) {
	rec, ok := m.records[key(productID, storeID)]
	if !ok {
		return nil, apperror.NewNotFound("stock record", productID)
	}
	copy := *rec
	return &copy, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, productID, storeID id.ID) (*Record, error) {
	m.forUpdateCalls++
	return m.Get(ctx, productID, storeID)
}

func (m *mockRepo) SetQuantity(ctx context.Context, productID, storeID id.ID, quantity int64) error {
	if m.failSet != nil {
		return m.failSet
	}
	rec, ok := m.records[key(productID, storeID)]
	if !ok {
		return apperror.NewNotFound("stock record", productID)
	}
	rec.Quantity = quantity
	return nil
}

func (m *mockRepo) CreateMovement(ctx context.Context, mv *Movement) error {
	m.movements = append(m.movements, mv)
	return nil
}

func (m *mockRepo) ListByStore(ctx context.Context, storeID id.ID) ([]*Record, error) {
	var out []*Record
	for _, rec := range m.records {
		if rec.StoreID == storeID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]*Movement, error) {
	return m.movements, nil
}

// passthroughTxManager runs the function without a database.
type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type capturingPublisher struct {
	published []events.Event
	fail      error
}

func (p *capturingPublisher) Publish(ctx context.Context, ev events.Event) error {
	if p.fail != nil {
		return p.fail
	}
	p.published = append(p.published, ev)
	return nil
}

func record(quantity, minQuantity int64) *Record {
	return &Record{
		ProductID:   id.New(),
		StoreID:     id.New(),
		CompanyID:   id.New(),
		Quantity:    quantity,
		MinQuantity: minQuantity,
	}
}

// --- ApplyDelta ---

func TestApplyDelta_DecrementsAndRecordsMovement(t *testing.T) {
	rec := record(10, 0)
	repo := newMockRepo(rec)
	svc := NewService(repo, passthroughTxManager{}, nil, nil)
	userID := id.New()
	saleID := id.New()
	buf := events.NewBuffer()

	change, err := svc.ApplyDelta(context.Background(), ApplyDeltaInput{
		ProductID:   rec.ProductID,
		StoreID:     rec.StoreID,
		Delta:       -3,
		UserID:      userID,
		ProductName: "Coffee",
		Reason:      ReasonSale,
		SaleID:      &saleID,
	}, buf)

	require.NoError(t, err)
	assert.Equal(t, Change{OldQuantity: 10, NewQuantity: 7}, change)
	assert.Equal(t, int64(7), repo.records[key(rec.ProductID, rec.StoreID)].Quantity)

	require.Len(t, repo.movements, 1)
	mv := repo.movements[0]
	assert.Equal(t, DirectionOut, mv.Direction)
	assert.Equal(t, int64(3), mv.Quantity, "movement quantity is the absolute delta")
	assert.Equal(t, ReasonSale, mv.Reason)
	require.NotNil(t, mv.SaleID)
	assert.Equal(t, saleID, *mv.SaleID)

	// One stock:update queued, no low-stock alert.
	require.Equal(t, 1, buf.Len())
	ev := buf.Events()[0]
	assert.Equal(t, events.KindStockUpdate, ev.Kind)
	payload := ev.Payload.(events.StockUpdatePayload)
	assert.Equal(t, int64(10), payload.OldQuantity)
	assert.Equal(t, int64(7), payload.NewQuantity)
}

func TestApplyDelta_InsufficientStock(t *testing.T) {
	rec := record(2, 0)
	repo := newMockRepo(rec)
	svc := NewService(repo, passthroughTxManager{}, nil, nil)
	buf := events.NewBuffer()

	_, err := svc.ApplyDelta(context.Background(), ApplyDeltaInput{
		ProductID:   rec.ProductID,
		StoreID:     rec.StoreID,
		Delta:       -5,
		UserID:      id.New(),
		ProductName: "Coffee",
		Reason:      ReasonSale,
	}, buf)

	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "Insufficient stock for Coffee: requested 5, available 2", appErr.Message)

	// Nothing written, nothing queued.
	assert.Equal(t, int64(2), repo.records[key(rec.ProductID, rec.StoreID)].Quantity)
	assert.Empty(t, repo.movements)
	assert.Equal(t, 0, buf.Len())
}

func TestApplyDelta_ExactDepletion(t *testing.T) {
	rec := record(5, 0)
	repo := newMockRepo(rec)
	svc := NewService(repo, passthroughTxManager{}, nil, nil)
	buf := events.NewBuffer()

	change, err := svc.ApplyDelta(context.Background(), ApplyDeltaInput{
		ProductID: rec.ProductID,
		StoreID:   rec.StoreID,
		Delta:     -5,
		UserID:    id.New(),
		Reason:    ReasonSale,
	}, buf)

	require.NoError(t, err)
	assert.Equal(t, int64(0), change.NewQuantity)

	// minQuantity 0 means no threshold is configured: depletion to zero does
	// not raise a low-stock alert.
	require.Equal(t, 1, buf.Len())
	assert.Equal(t, events.KindStockUpdate, buf.Events()[0].Kind)
}

func TestApplyDelta_QueuesLowStockAlert(t *testing.T) {
	rec := record(6, 5)
	repo := newMockRepo(rec)
	svc := NewService(repo, passthroughTxManager{}, nil, nil)
	buf := events.NewBuffer()

	_, err := svc.ApplyDelta(context.Background(), ApplyDeltaInput{
		ProductID:   rec.ProductID,
		StoreID:     rec.StoreID,
		Delta:       -2,
		UserID:      id.New(),
		ProductName: "Tea",
		Reason:      ReasonSale,
	}, buf)

	require.NoError(t, err)
	require.Equal(t, 2, buf.Len())
	low := buf.Events()[1]
	assert.Equal(t, events.KindStockLow, low.Kind)
	payload := low.Payload.(events.StockLowPayload)
	assert.Equal(t, int64(4), payload.CurrentQuantity)
	assert.Equal(t, int64(5), payload.MinQuantity)
	assert.Equal(t, "Tea", payload.ProductName)
}

func TestApplyDelta_ZeroDeltaRejected(t *testing.T) {
	rec := record(10, 0)
	svc := NewService(newMockRepo(rec), passthroughTxManager{}, nil, nil)

	_, err := svc.ApplyDelta(context.Background(), ApplyDeltaInput{
		ProductID: rec.ProductID,
		StoreID:   rec.StoreID,
		Delta:     0,
	}, events.NewBuffer())

	require.Error(t, err)
}

func TestApplyDelta_UnknownRecord(t *testing.T) {
	svc := NewService(newMockRepo(), passthroughTxManager{}, nil, nil)

	_, err := svc.ApplyDelta(context.Background(), ApplyDeltaInput{
		ProductID: id.New(),
		StoreID:   id.New(),
		Delta:     -1,
	}, events.NewBuffer())

	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

// --- SetAbsolute ---

func TestSetAbsolute_RecordsAdjustment(t *testing.T) {
	rec := record(12, 0)
	repo := newMockRepo(rec)
	pub := &capturingPublisher{}
	svc := NewService(repo, passthroughTxManager{}, pub, nil)

	change, err := svc.SetAbsolute(context.Background(), SetAbsoluteInput{
		ProductID:   rec.ProductID,
		StoreID:     rec.StoreID,
		NewQuantity: 5,
		UserID:      id.New(),
		Notes:       "yearly count",
	})

	require.NoError(t, err)
	assert.Equal(t, Change{OldQuantity: 12, NewQuantity: 5}, change)

	require.Len(t, repo.movements, 1)
	mv := repo.movements[0]
	assert.Equal(t, DirectionOut, mv.Direction)
	assert.Equal(t, int64(7), mv.Quantity)
	assert.Equal(t, ReasonAdjustment, mv.Reason)
	assert.Nil(t, mv.SaleID)
	assert.Equal(t, "yearly count", mv.Notes)

	// Events published after the transaction.
	require.Len(t, pub.published, 1)
	assert.Equal(t, events.KindStockUpdate, pub.published[0].Kind)
}

func TestSetAbsolute_ZeroDeltaIsNoOp(t *testing.T) {
	rec := record(8, 0)
	repo := newMockRepo(rec)
	pub := &capturingPublisher{}
	svc := NewService(repo, passthroughTxManager{}, pub, nil)

	change, err := svc.SetAbsolute(context.Background(), SetAbsoluteInput{
		ProductID:   rec.ProductID,
		StoreID:     rec.StoreID,
		NewQuantity: 8,
		UserID:      id.New(),
	})

	require.NoError(t, err)
	assert.Equal(t, Change{OldQuantity: 8, NewQuantity: 8}, change)
	assert.Empty(t, repo.movements)
	assert.Empty(t, pub.published)
}

func TestSetAbsolute_NegativeRejected(t *testing.T) {
	rec := record(8, 0)
	svc := NewService(newMockRepo(rec), passthroughTxManager{}, nil, nil)

	_, err := svc.SetAbsolute(context.Background(), SetAbsoluteInput{
		ProductID:   rec.ProductID,
		StoreID:     rec.StoreID,
		NewQuantity: -1,
	})

	require.Error(t, err)
}

func TestSetAbsolute_PublisherFailureDoesNotFailAdjustment(t *testing.T) {
	rec := record(3, 0)
	repo := newMockRepo(rec)
	pub := &capturingPublisher{fail: errors.New("hub down")}
	svc := NewService(repo, passthroughTxManager{}, pub, nil)

	_, err := svc.SetAbsolute(context.Background(), SetAbsoluteInput{
		ProductID:   rec.ProductID,
		StoreID:     rec.StoreID,
		NewQuantity: 9,
		UserID:      id.New(),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(9), repo.records[key(rec.ProductID, rec.StoreID)].Quantity)
}
