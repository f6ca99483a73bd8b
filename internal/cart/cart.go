package cart

import (
	"context"
	"encoding/json"

	"github.com/emarket-io/emarket-backend/pkg/db/models"
	pkgerrors "github.com/emarket-io/emarket-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionKey is the well-known session key holding the serialized cart.
const SessionKey = "cart"

// sessionHandle is the narrow surface the cart needs from a session.
type sessionHandle interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, value any) error
	Delete(key string)
}

// ProductFinder resolves cart lines against the live catalog in one batch.
type ProductFinder interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
}

// Item is a cart line materialized against the catalog. Product is nil when
// the referenced product no longer resolves; the snapshot price still applies.
type Item struct {
	ProductID string
	Product   *models.Product
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Cart is a transient per-request view over the session-scoped line mapping.
// It holds no state of its own across requests: every mutation writes the
// whole mapping back into the session immediately.
type Cart struct {
	sess    sessionHandle
	state   state
	cleared bool
}

// New builds a cart view from the session. An absent or empty cart key is
// initialized to an empty mapping and written back, so an empty cart is
// always a present collection while the view is live. A payload that does not
// decode as a cart mapping is a hard error, never a silent reset.
func New(sess sessionHandle) (*Cart, error) {
	if sess == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session is required")
	}

	c := &Cart{sess: sess, state: newState()}

	raw, ok := sess.Get(SessionKey)
	if !ok || len(raw) == 0 {
		if err := c.save(); err != nil {
			return nil, err
		}
		return c, nil
	}

	if err := json.Unmarshal(raw, &c.state); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt cart session payload")
	}
	return c, nil
}

// Add creates or updates the line for productID and persists the cart. The
// unit price is snapshotted only when the line is first created; later adds
// never touch it. With replace the quantity is overwritten, otherwise it
// accumulates.
func (c *Cart) Add(productID string, unitPrice decimal.Decimal, quantity int, replace bool) error {
	if err := c.ensureLive(); err != nil {
		return err
	}
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	line, ok := c.state.line(productID)
	if !ok {
		line = Line{Quantity: 0, UnitPrice: unitPrice}
	}

	if replace {
		line.Quantity = quantity
	} else {
		line.Quantity += quantity
	}

	c.state.set(productID, line)
	return c.save()
}

// Remove deletes the line for productID and persists. Removing an absent id
// is a no-op.
func (c *Cart) Remove(productID string) error {
	if err := c.ensureLive(); err != nil {
		return err
	}
	if !c.state.remove(productID) {
		return nil
	}
	return c.save()
}

// Items resolves every line against the catalog with one batched lookup and
// returns materialized items in insertion order. Lines whose product no
// longer resolves are still yielded with the snapshot price and a nil
// Product. Each call re-runs the lookup, so the result is a fresh snapshot.
func (c *Cart) Items(ctx context.Context, finder ProductFinder) ([]Item, error) {
	if finder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product finder is required")
	}

	ids := make([]uuid.UUID, 0, c.state.len())
	for _, productID := range c.state.order {
		if id, err := uuid.Parse(productID); err == nil {
			ids = append(ids, id)
		}
	}

	products := map[uuid.UUID]*models.Product{}
	if len(ids) > 0 {
		resolved, err := finder.FindByIDs(ctx, ids)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving cart products")
		}
		products = resolved
	}

	items := make([]Item, 0, c.state.len())
	for _, productID := range c.state.order {
		line := c.state.lines[productID]
		item := Item{
			ProductID: productID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		}
		if id, err := uuid.Parse(productID); err == nil {
			item.Product = products[id]
		}
		items = append(items, item)
	}
	return items, nil
}

// Count returns the sum of quantities across all lines, not the number of
// distinct lines.
func (c *Cart) Count() int {
	count := 0
	for _, line := range c.state.lines {
		count += line.Quantity
	}
	return count
}

// Total sums unit price times quantity over the snapshotted mapping; no
// catalog access happens here.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.state.lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return c.state.len()
}

// Clear deletes the cart key from the session entirely. The view becomes
// stale afterwards: further mutations fail until a new Cart is built from a
// fresh session read.
func (c *Cart) Clear() {
	c.sess.Delete(SessionKey)
	c.state = newState()
	c.cleared = true
}

func (c *Cart) ensureLive() error {
	if c.cleared {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart was cleared; rebuild it from the session")
	}
	return nil
}

func (c *Cart) save() error {
	if err := c.sess.Set(SessionKey, c.state); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting cart to session")
	}
	return nil
}
