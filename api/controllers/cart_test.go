package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emarket-io/emarket-backend/api/middleware"
	"github.com/emarket-io/emarket-backend/internal/catalog"
	"github.com/emarket-io/emarket-backend/internal/session"
	"github.com/emarket-io/emarket-backend/pkg/db/models"
	pkgerrors "github.com/emarket-io/emarket-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memoryStore struct {
	data map[string]map[string]json.RawMessage
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]map[string]json.RawMessage{}}
}

func (s *memoryStore) Load(ctx context.Context, sessionID string) (map[string]json.RawMessage, error) {
	values, ok := s.data[sessionID]
	if !ok {
		return map[string]json.RawMessage{}, nil
	}
	copied := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return copied, nil
}

func (s *memoryStore) Save(ctx context.Context, sessionID string, values map[string]json.RawMessage) error {
	copied := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		copied[k] = v
	}
	s.data[sessionID] = copied
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, sessionID string) error {
	delete(s.data, sessionID)
	return nil
}

type stubCatalog struct {
	catalog.Service

	product  *models.Product
	products map[uuid.UUID]*models.Product
	err      error
}

func (s stubCatalog) Product(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.product, nil
}

func (s stubCatalog) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.products == nil {
		return map[uuid.UUID]*models.Product{}, nil
	}
	return s.products, nil
}

func requestWithSession(t *testing.T, req *http.Request, store session.Store) (*http.Request, *session.Session) {
	t.Helper()
	sess, err := session.New(session.NewID(), store)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := sess.Load(req.Context()); err != nil {
		t.Fatalf("load session: %v", err)
	}
	return req.WithContext(middleware.WithSession(req.Context(), sess)), sess
}

func testProduct() *models.Product {
	return &models.Product{
		ID:        uuid.New(),
		Name:      "green tea",
		Slug:      "green-tea",
		Price:     decimal.RequireFromString("9.99"),
		Available: true,
	}
}

func TestCartDetailEmpty(t *testing.T) {
	handler := CartDetail(stubCatalog{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req, _ = requestWithSession(t, req, newMemoryStore())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Count != 0 || len(envelope.Data.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", envelope.Data)
	}
	if envelope.Data.Total != "0.00" {
		t.Fatalf("expected total 0.00, got %s", envelope.Data.Total)
	}
}

func TestCartAddItemSuccess(t *testing.T) {
	product := testProduct()
	svc := stubCatalog{
		product:  product,
		products: map[uuid.UUID]*models.Product{product.ID: product},
	}
	handler := CartAddItem(svc, nil)

	body := `{"product_id":"` + product.ID.String() + `","quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req, sess := requestWithSession(t, req, newMemoryStore())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body)
	}

	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Count != 2 {
		t.Fatalf("expected count 2, got %d", envelope.Data.Count)
	}
	if envelope.Data.Total != "19.98" {
		t.Fatalf("expected total 19.98, got %s", envelope.Data.Total)
	}
	if !sess.Dirty() {
		t.Fatal("expected session to be dirty after add")
	}
}

func TestCartAddItemUnknownProduct(t *testing.T) {
	handler := CartAddItem(stubCatalog{}, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req, sess := requestWithSession(t, req, newMemoryStore())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if _, ok := sess.Get("cart"); ok {
		t.Fatal("cart must not be touched when the product lookup fails")
	}
}

func TestCartAddItemInvalidBody(t *testing.T) {
	handler := CartAddItem(stubCatalog{product: testProduct()}, nil)

	cases := map[string]string{
		"zero quantity":     `{"product_id":"` + uuid.NewString() + `","quantity":0}`,
		"negative quantity": `{"product_id":"` + uuid.NewString() + `","quantity":-1}`,
		"bad id":            `{"product_id":"not-a-uuid","quantity":1}`,
		"unknown field":     `{"product_id":"` + uuid.NewString() + `","quantity":1,"nope":true}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
			req, _ = requestWithSession(t, req, newMemoryStore())

			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
		})
	}
}

func TestCartAddItemReplaceOverwrites(t *testing.T) {
	product := testProduct()
	svc := stubCatalog{
		product:  product,
		products: map[uuid.UUID]*models.Product{product.ID: product},
	}
	seed := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil)
	_, sess := requestWithSession(t, seed, newMemoryStore())

	// Both requests share the same session, as two calls from one visitor would.
	add := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
		req = req.WithContext(middleware.WithSession(req.Context(), sess))
		resp := httptest.NewRecorder()
		CartAddItem(svc, nil).ServeHTTP(resp, req)
		return resp
	}

	first := `{"product_id":"` + product.ID.String() + `","quantity":4}`
	second := `{"product_id":"` + product.ID.String() + `","quantity":2,"replace":true}`

	if resp := add(first); resp.Code != http.StatusOK {
		t.Fatalf("first add: expected 200 got %d", resp.Code)
	}
	resp := add(second)
	if resp.Code != http.StatusOK {
		t.Fatalf("second add: expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Count != 2 {
		t.Fatalf("expected count 2 after replace, got %d", envelope.Data.Count)
	}
}

func TestCartRemoveItem(t *testing.T) {
	product := testProduct()
	svc := stubCatalog{
		product:  product,
		products: map[uuid.UUID]*models.Product{product.ID: product},
	}

	store := newMemoryStore()
	addReq := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(
		`{"product_id":"`+product.ID.String()+`","quantity":1}`))
	addReq, sess := requestWithSession(t, addReq, store)
	CartAddItem(svc, nil).ServeHTTP(httptest.NewRecorder(), addReq)

	removeReq := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+product.ID.String(), nil)
	removeReq = removeReq.WithContext(middleware.WithSession(removeReq.Context(), sess))
	removeReq = withURLParam(removeReq, "productID", product.ID.String())

	resp := httptest.NewRecorder()
	CartRemoveItem(svc, nil).ServeHTTP(resp, removeReq)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Count != 0 {
		t.Fatalf("expected empty cart, got count %d", envelope.Data.Count)
	}
}

func TestCartClear(t *testing.T) {
	product := testProduct()
	svc := stubCatalog{
		product:  product,
		products: map[uuid.UUID]*models.Product{product.ID: product},
	}

	addReq := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(
		`{"product_id":"`+product.ID.String()+`","quantity":3}`))
	addReq, sess := requestWithSession(t, addReq, newMemoryStore())
	CartAddItem(svc, nil).ServeHTTP(httptest.NewRecorder(), addReq)

	clearReq := httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)
	clearReq = clearReq.WithContext(middleware.WithSession(clearReq.Context(), sess))

	resp := httptest.NewRecorder()
	CartClear(nil).ServeHTTP(resp, clearReq)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if _, ok := sess.Get("cart"); ok {
		t.Fatal("expected cart key to be dropped from session")
	}
}

func TestCartDetailMissingSession(t *testing.T) {
	handler := CartDetail(stubCatalog{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
