package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/emarket-io/emarket-backend/internal/cart"
	"github.com/emarket-io/emarket-backend/pkg/db/models"
	pkgerrors "github.com/emarket-io/emarket-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubOrderRepo struct {
	order     *models.Order
	orders    []models.Order
	createErr error
	itemsErr  error
	findErr   error

	created      *models.Order
	createdItems []models.OrderItem
}

func (r *stubOrderRepo) WithTx(tx *gorm.DB) Repository {
	return r
}

func (r *stubOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	order.ID = uuid.New()
	r.created = order
	return order, nil
}

func (r *stubOrderRepo) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if r.itemsErr != nil {
		return r.itemsErr
	}
	r.createdItems = items
	return nil
}

func (r *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if r.order == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.order, nil
}

func (r *stubOrderRepo) List(ctx context.Context) ([]models.Order, error) {
	return r.orders, r.findErr
}

type stubTxRunner struct {
	err error
}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.err != nil {
		return s.err
	}
	return fn(nil)
}

func validInput() CreateOrderInput {
	return CreateOrderInput{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		Address:    "12 Analytical Way",
		PostalCode: "10001",
		City:       "London",
	}
}

func cartItems(t *testing.T) []cart.Item {
	t.Helper()
	productA := &models.Product{ID: uuid.New(), Name: "tea"}
	productB := &models.Product{ID: uuid.New(), Name: "cup"}
	return []cart.Item{
		{
			ProductID: productA.ID.String(),
			Product:   productA,
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("9.99"),
			LineTotal: decimal.RequireFromString("19.98"),
		},
		{
			ProductID: productB.ID.String(),
			Product:   productB,
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("5.00"),
			LineTotal: decimal.RequireFromString("5.00"),
		},
	}
}

func mustOrderService(t *testing.T, repo Repository, tx txRunner) Service {
	t.Helper()
	svc, err := NewService(repo, tx)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceRequiresDeps(t *testing.T) {
	t.Parallel()

	if _, err := NewService(nil, stubTxRunner{}); err == nil {
		t.Fatal("expected error for nil repo")
	}
	if _, err := NewService(&stubOrderRepo{}, nil); err == nil {
		t.Fatal("expected error for nil tx runner")
	}
}

func TestCreatePersistsOrderAndItems(t *testing.T) {
	t.Parallel()

	repo := &stubOrderRepo{}
	svc := mustOrderService(t, repo, stubTxRunner{})

	items := cartItems(t)
	order, err := svc.Create(context.Background(), validInput(), items)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if repo.created == nil {
		t.Fatal("expected order row to be created")
	}
	if len(repo.createdItems) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(repo.createdItems))
	}
	for _, item := range repo.createdItems {
		if item.OrderID != order.ID {
			t.Fatalf("item not linked to order: %s != %s", item.OrderID, order.ID)
		}
	}

	want := decimal.RequireFromString("24.98")
	if !order.TotalCost().Equal(want) {
		t.Fatalf("expected total %s, got %s", want, order.TotalCost())
	}
}

func TestCreateUsesSnapshotPrices(t *testing.T) {
	t.Parallel()

	repo := &stubOrderRepo{}
	svc := mustOrderService(t, repo, stubTxRunner{})

	product := &models.Product{ID: uuid.New(), Price: decimal.RequireFromString("15.00")}
	items := []cart.Item{{
		ProductID: product.ID.String(),
		Product:   product,
		Quantity:  1,
		UnitPrice: decimal.RequireFromString("9.99"), // snapshot predates price change
	}}

	if _, err := svc.Create(context.Background(), validInput(), items); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !repo.createdItems[0].Price.Equal(decimal.RequireFromString("9.99")) {
		t.Fatalf("expected snapshot price, got %s", repo.createdItems[0].Price)
	}
}

func TestCreateEmptyCartIsValidationError(t *testing.T) {
	t.Parallel()

	svc := mustOrderService(t, &stubOrderRepo{}, stubTxRunner{})
	_, err := svc.Create(context.Background(), validInput(), nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateMissingFieldsAreRejected(t *testing.T) {
	t.Parallel()

	svc := mustOrderService(t, &stubOrderRepo{}, stubTxRunner{})

	input := validInput()
	input.Email = " "
	_, err := svc.Create(context.Background(), input, cartItems(t))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateVanishedProductIsStateConflict(t *testing.T) {
	t.Parallel()

	svc := mustOrderService(t, &stubOrderRepo{}, stubTxRunner{})

	items := cartItems(t)
	items[1].Product = nil

	_, err := svc.Create(context.Background(), validInput(), items)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCreateWrapsTxFailure(t *testing.T) {
	t.Parallel()

	svc := mustOrderService(t, &stubOrderRepo{}, stubTxRunner{err: errors.New("deadlock")})
	_, err := svc.Create(context.Background(), validInput(), cartItems(t))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestGetMissingOrderIsNotFound(t *testing.T) {
	t.Parallel()

	svc := mustOrderService(t, &stubOrderRepo{}, stubTxRunner{})
	_, err := svc.Get(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetReturnsOrder(t *testing.T) {
	t.Parallel()

	want := &models.Order{ID: uuid.New()}
	svc := mustOrderService(t, &stubOrderRepo{order: want}, stubTxRunner{})

	got, err := svc.Get(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != want.ID {
		t.Fatalf("unexpected order %s", got.ID)
	}
}
