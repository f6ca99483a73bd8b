package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Line is one cart entry: a quantity plus the unit price snapshotted when the
// line was first created. The snapshot is immune to later catalog changes.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// lineWire is the stored shape of a line. Price travels as a string so the
// payload round-trips without floating-point drift; arithmetic only ever
// happens on the decoded decimal.
type lineWire struct {
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// state is the serialized cart: product id -> line, insertion ordered. The
// wire format is a plain JSON object whose key order carries the insertion
// order, so encoding and decoding go through the json token stream instead of
// a Go map.
type state struct {
	order []string
	lines map[string]Line
}

func newState() state {
	return state{lines: map[string]Line{}}
}

func (s *state) line(productID string) (Line, bool) {
	line, ok := s.lines[productID]
	return line, ok
}

// set stores the line, appending the id to the insertion order if new.
func (s *state) set(productID string, line Line) {
	if s.lines == nil {
		s.lines = map[string]Line{}
	}
	if _, exists := s.lines[productID]; !exists {
		s.order = append(s.order, productID)
	}
	s.lines[productID] = line
}

func (s *state) remove(productID string) bool {
	if _, exists := s.lines[productID]; !exists {
		return false
	}
	delete(s.lines, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *state) len() int {
	return len(s.order)
}

// MarshalJSON writes the mapping as a JSON object in insertion order.
func (s state) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		line := s.lines[id]
		value, err := json.Marshal(lineWire{
			Quantity: line.Quantity,
			Price:    line.UnitPrice.String(),
		})
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the mapping token by token so the object's key order is
// preserved as insertion order.
func (s *state) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading cart payload: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("cart payload is not a JSON object")
	}

	next := newState()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading cart key: %w", err)
		}
		productID, ok := tok.(string)
		if !ok {
			return fmt.Errorf("cart key is not a string")
		}

		var wire lineWire
		if err := dec.Decode(&wire); err != nil {
			return fmt.Errorf("decoding cart line %q: %w", productID, err)
		}
		if wire.Quantity < 0 {
			return fmt.Errorf("cart line %q has negative quantity %d", productID, wire.Quantity)
		}
		price, err := decimal.NewFromString(wire.Price)
		if err != nil {
			return fmt.Errorf("parsing price for cart line %q: %w", productID, err)
		}

		next.set(productID, Line{Quantity: wire.Quantity, UnitPrice: price})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("reading cart payload close: %w", err)
	}

	*s = next
	return nil
}
