package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/emarket-io/emarket-backend/internal/cart"
	"github.com/emarket-io/emarket-backend/pkg/db/models"
	pkgerrors "github.com/emarket-io/emarket-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service converts materialized cart items into persisted orders.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput, items []cart.Item) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds an orders service backed by the provided stack.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// CreateOrderInput carries the customer contact/shipping fields.
type CreateOrderInput struct {
	FirstName  string
	LastName   string
	Email      string
	Address    string
	PostalCode string
	City       string
}

func (in CreateOrderInput) validate() error {
	fields := map[string]string{
		"first name":  in.FirstName,
		"last name":   in.LastName,
		"email":       in.Email,
		"address":     in.Address,
		"postal code": in.PostalCode,
		"city":        in.City,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
		}
	}
	return nil
}

// Create persists the order and one item per materialized cart line in a
// single transaction. The caller clears the cart once this returns without
// error. Lines whose product no longer resolves reject the whole order: an
// order item must reference a real product row.
func (s *service) Create(ctx context.Context, input CreateOrderInput, items []cart.Item) (*models.Order, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart references a product that is no longer in the catalog")
		}
		orderItems = append(orderItems, models.OrderItem{
			ProductID: item.Product.ID,
			Price:     item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	var saved *models.Order
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		order, err := txRepo.Create(ctx, &models.Order{
			FirstName:  input.FirstName,
			LastName:   input.LastName,
			Email:      input.Email,
			Address:    input.Address,
			PostalCode: input.PostalCode,
			City:       input.City,
		})
		if err != nil {
			return err
		}

		for i := range orderItems {
			orderItems[i].OrderID = order.ID
		}
		if err := txRepo.CreateItems(ctx, orderItems); err != nil {
			return err
		}

		order.Items = orderItems
		saved = order
		return nil
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	return saved, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context) ([]models.Order, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}
