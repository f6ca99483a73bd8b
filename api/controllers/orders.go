package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/emarket-io/emarket-backend/api/responses"
	"github.com/emarket-io/emarket-backend/api/validators"
	"github.com/emarket-io/emarket-backend/internal/catalog"
	"github.com/emarket-io/emarket-backend/internal/orders"
	"github.com/emarket-io/emarket-backend/pkg/db/models"
	pkgerrors "github.com/emarket-io/emarket-backend/pkg/errors"
	"github.com/emarket-io/emarket-backend/pkg/logger"
)

type orderCreateRequest struct {
	FirstName  string `json:"first_name" validate:"required,max=50"`
	LastName   string `json:"last_name" validate:"required,max=50"`
	Email      string `json:"email" validate:"required,email"`
	Address    string `json:"address" validate:"required,max=250"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	City       string `json:"city" validate:"required,max=100"`
}

type orderItemDTO struct {
	ProductID uuid.UUID `json:"product_id"`
	Price     string    `json:"price"`
	Quantity  int       `json:"quantity"`
	Cost      string    `json:"cost"`
}

type orderResponse struct {
	ID         uuid.UUID      `json:"id"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Email      string         `json:"email"`
	Address    string         `json:"address"`
	PostalCode string         `json:"postal_code"`
	City       string         `json:"city"`
	Paid       bool           `json:"paid"`
	Items      []orderItemDTO `json:"items"`
	TotalCost  string         `json:"total_cost"`
	CreatedAt  time.Time      `json:"created_at"`
}

func newOrderResponse(order models.Order) orderResponse {
	out := orderResponse{
		ID:         order.ID,
		FirstName:  order.FirstName,
		LastName:   order.LastName,
		Email:      order.Email,
		Address:    order.Address,
		PostalCode: order.PostalCode,
		City:       order.City,
		Paid:       order.Paid,
		Items:      make([]orderItemDTO, 0, len(order.Items)),
		TotalCost:  order.TotalCost().StringFixed(2),
		CreatedAt:  order.CreatedAt,
	}
	for _, item := range order.Items {
		out.Items = append(out.Items, orderItemDTO{
			ProductID: item.ProductID,
			Price:     item.Price.StringFixed(2),
			Quantity:  item.Quantity,
			Cost:      item.Cost().StringFixed(2),
		})
	}
	return out
}

// OrderCreate turns the visitor's cart into a persisted order and empties the
// cart. The cart is cleared only after the order is durably stored.
func OrderCreate(orderSvc orders.Service, catalogSvc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body orderCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := sessionCart(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := c.Items(r.Context(), catalogSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := orderSvc.Create(r.Context(), orders.CreateOrderInput{
			FirstName:  body.FirstName,
			LastName:   body.LastName,
			Email:      body.Email,
			Address:    body.Address,
			PostalCode: body.PostalCode,
			City:       body.City,
		}, items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c.Clear()
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(*order))
	}
}

// OrderDetail returns one order with its items.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}

// OrderList returns all orders, newest first.
func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(all))
		for _, order := range all {
			out = append(out, newOrderResponse(order))
		}
		responses.WriteSuccess(w, out)
	}
}
