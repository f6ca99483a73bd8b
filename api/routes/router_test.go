package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emarket-io/emarket-backend/internal/cart"
	"github.com/emarket-io/emarket-backend/internal/catalog"
	"github.com/emarket-io/emarket-backend/internal/orders"
	"github.com/emarket-io/emarket-backend/pkg/config"
	"github.com/emarket-io/emarket-backend/pkg/db/models"
	pkgerrors "github.com/emarket-io/emarket-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCatalogService struct{}

func (stubCatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	return []models.Category{{ID: uuid.New(), Name: "Drinks", Slug: "drinks"}}, nil
}

func (stubCatalogService) Products(ctx context.Context, categorySlug string) ([]models.Product, error) {
	return nil, nil
}

func (stubCatalogService) Product(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (stubCatalogService) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	return map[uuid.UUID]*models.Product{}, nil
}

func (stubCatalogService) CreateCategory(ctx context.Context, input catalog.CreateCategoryInput) (*models.Category, error) {
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "nope")
}

func (stubCatalogService) CreateProduct(ctx context.Context, input catalog.CreateProductInput) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "nope")
}

func (stubCatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, input catalog.UpdateProductInput) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (stubCatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

type stubOrdersService struct{}

func (stubOrdersService) Create(ctx context.Context, input orders.CreateOrderInput, items []cart.Item) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
}

func (stubOrdersService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (stubOrdersService) List(ctx context.Context) ([]models.Order, error) {
	return nil, nil
}

type memoryStore struct {
	data map[string]map[string]json.RawMessage
}

func (s *memoryStore) Load(ctx context.Context, sessionID string) (map[string]json.RawMessage, error) {
	if values, ok := s.data[sessionID]; ok {
		return values, nil
	}
	return map[string]json.RawMessage{}, nil
}

func (s *memoryStore) Save(ctx context.Context, sessionID string, values map[string]json.RawMessage) error {
	s.data[sessionID] = values
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, sessionID string) error {
	delete(s.data, sessionID)
	return nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		Session: config.SessionConfig{
			CookieName: "emarket_session",
			TTL:        time.Hour,
		},
	}
	return NewRouter(
		cfg,
		nil,
		stubPinger{},
		nil,
		&memoryStore{data: map[string]map[string]json.RawMessage{}},
		stubCatalogService{},
		stubOrdersService{},
		prometheus.NewRegistry(),
	)
}

func TestRouterHealthLive(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouterCatalogRoutes(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("categories: expected 200 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products/"+uuid.NewString(), nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("product detail: expected 404 got %d", resp.Code)
	}
}

func TestRouterCartRequiresNoAuthButSetsSession(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body)
	}
	if len(resp.Result().Cookies()) == 0 {
		t.Fatal("expected session cookie on first visit")
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
