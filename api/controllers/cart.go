package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/emarket-io/emarket-backend/api/middleware"
	"github.com/emarket-io/emarket-backend/api/responses"
	"github.com/emarket-io/emarket-backend/api/validators"
	"github.com/emarket-io/emarket-backend/internal/cart"
	"github.com/emarket-io/emarket-backend/internal/catalog"
	pkgerrors "github.com/emarket-io/emarket-backend/pkg/errors"
	"github.com/emarket-io/emarket-backend/pkg/logger"
)

type cartItemResponse struct {
	ProductID string           `json:"product_id"`
	Product   *productResponse `json:"product,omitempty"`
	Quantity  int              `json:"quantity"`
	UnitPrice string           `json:"unit_price"`
	LineTotal string           `json:"line_total"`
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
	Count int                `json:"count"`
	Total string             `json:"total"`
}

type cartAddRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	Replace   bool   `json:"replace"`
}

func newCartResponse(c *cart.Cart, items []cart.Item) cartResponse {
	out := cartResponse{
		Items: make([]cartItemResponse, 0, len(items)),
		Count: c.Count(),
		Total: c.Total().StringFixed(2),
	}
	for _, item := range items {
		line := cartItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal.StringFixed(2),
		}
		if item.Product != nil {
			resp := newProductResponse(*item.Product)
			line.Product = &resp
		}
		out.Items = append(out.Items, line)
	}
	return out
}

func sessionCart(r *http.Request) (*cart.Cart, error) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no session on request")
	}
	return cart.New(sess)
}

// CartDetail returns the cart materialized against the live catalog.
func CartDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := sessionCart(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := c.Items(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(c, items))
	}
}

// CartAddItem adds a product to the cart or adjusts its quantity. The product
// must exist in the catalog; its current price is snapshotted when the line is
// first created.
func CartAddItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body cartAddRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(body.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		product, err := svc.Product(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := sessionCart(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := c.Add(product.ID.String(), product.Price, body.Quantity, body.Replace); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := c.Items(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(c, items))
	}
}

// CartRemoveItem deletes one line from the cart. Removing a product that is
// not in the cart succeeds without changes.
func CartRemoveItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := productIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := sessionCart(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := c.Remove(id.String()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := c.Items(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(c, items))
	}
}

// CartClear drops the whole cart from the session.
func CartClear(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := sessionCart(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}
