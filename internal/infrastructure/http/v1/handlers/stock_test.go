package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/core/appctx"
	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/core/types"
	"kassa/internal/domain/product"
	"kassa/internal/domain/stock"
	"kassa/internal/events"
	"kassa/internal/infrastructure/http/v1/middleware"
)

type stubStockRepo struct {
	record *stock.Record
}

func (r *stubStockRepo) Get(ctx context.Context, productID, storeID id.ID) (*stock.Record, error) {
	if r.record == nil || r.record.ProductID != productID || r.record.StoreID != storeID {
		return nil, apperror.NewNotFound("stock record", fmt.Sprintf("%s@%s", productID, storeID))
	}
	copy := *r.record
	return &copy, nil
}

func (r *stubStockRepo) GetForUpdate(ctx context.Context, productID, storeID id.ID) (*stock.Record, error) {
	return r.Get(ctx, productID, storeID)
}

func (r *stubStockRepo) SetQuantity(ctx context.Context, productID, storeID id.ID, quantity int64) error {
	r.record.Quantity = quantity
	return nil
}

func (r *stubStockRepo) CreateMovement(ctx context.Context, m *stock.Movement) error {
	return nil
}

func (r *stubStockRepo) ListByStore(ctx context.Context, storeID id.ID) ([]*stock.Record, error) {
	return []*stock.Record{r.record}, nil
}

func (r *stubStockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) ([]*stock.Movement, error) {
	return nil, nil
}

type stubProductRepo struct {
	product *product.Product
}

func (r *stubProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	if r.product == nil || r.product.ID != productID {
		return nil, apperror.NewNotFound("product", productID)
	}
	return r.product, nil
}

func (r *stubProductRepo) ListByStore(ctx context.Context, companyID, storeID id.ID) ([]*product.StoreProduct, error) {
	return nil, nil
}

type noTxManager struct{}

func (noTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type collectingPublisher struct {
	published []events.Event
}

func (p *collectingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.published = append(p.published, ev)
	return nil
}

func adjustRouter(user *appctx.UserContext, svc *stock.Service, products product.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
	})

	handler := NewStockHandler(NewBaseHandler(), svc, products)
	router.PUT("/stock/adjust", handler.Adjust)
	return router
}

func putAdjust(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/stock/adjust", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdjust_LowStockAlertCarriesProductName(t *testing.T) {
	companyID := id.New()
	storeID := id.New()

	p := &product.Product{
		ID:           id.New(),
		CompanyID:    companyID,
		SKU:          "COFFEE-250",
		Name:         "Ground Coffee 250g",
		SellingPrice: types.MustMoney("1000"),
		Active:       true,
	}
	repo := &stubStockRepo{record: &stock.Record{
		ProductID:   p.ID,
		StoreID:     storeID,
		CompanyID:   companyID,
		Quantity:    20,
		MinQuantity: 5,
	}}
	pub := &collectingPublisher{}
	svc := stock.NewService(repo, noTxManager{}, pub, nil)

	user := &appctx.UserContext{
		UserID:    id.New().String(),
		CompanyID: companyID.String(),
		StoreID:   storeID.String(),
		Active:    true,
	}
	router := adjustRouter(user, svc, &stubProductRepo{product: p})

	rec := putAdjust(t, router, gin.H{
		"productId": p.ID.String(),
		"quantity":  3,
		"notes":     "shrinkage",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(3), repo.record.Quantity)

	require.Len(t, pub.published, 2)
	assert.Equal(t, events.KindStockUpdate, pub.published[0].Kind)

	low := pub.published[1]
	require.Equal(t, events.KindStockLow, low.Kind)
	payload := low.Payload.(events.StockLowPayload)
	assert.Equal(t, "Ground Coffee 250g", payload.ProductName)
	assert.Equal(t, int64(3), payload.CurrentQuantity)
	assert.Equal(t, int64(5), payload.MinQuantity)
}

func TestAdjust_ForeignCompanyProductIsInvisible(t *testing.T) {
	companyID := id.New()
	storeID := id.New()

	p := &product.Product{
		ID:        id.New(),
		CompanyID: id.New(), // other tenant
		Name:      "Hidden",
		Active:    true,
	}
	repo := &stubStockRepo{record: &stock.Record{
		ProductID: p.ID,
		StoreID:   storeID,
		CompanyID: p.CompanyID,
		Quantity:  20,
	}}
	svc := stock.NewService(repo, noTxManager{}, &collectingPublisher{}, nil)

	user := &appctx.UserContext{
		UserID:    id.New().String(),
		CompanyID: companyID.String(),
		StoreID:   storeID.String(),
		Active:    true,
	}
	router := adjustRouter(user, svc, &stubProductRepo{product: p})

	rec := putAdjust(t, router, gin.H{
		"productId": p.ID.String(),
		"quantity":  3,
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int64(20), repo.record.Quantity, "nothing adjusted")
}
