// Package reservation holds stock for checkout lines before the order is
// persisted. Two backends implement the hold: an atomic server-side procedure
// path and a client-side optimistic compare-and-swap path used when the
// procedures are not installed. Releases always travel back through the same
// path that made the hold.
package reservation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/velogear/velogear-backend/internal/stock"
	"github.com/velogear/velogear-backend/pkg/enums"
)

// Line is one unit of demand against a product/variant.
type Line struct {
	ProductID uuid.UUID
	Size      *string
	Color     *string
	Quantity  int
}

// Key returns the stock address for this line.
func (l Line) Key() stock.ItemKey {
	return stock.ItemKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

// Held records one successful hold together with the mode that made it, so a
// later release can mirror the reservation path.
type Held struct {
	Line
	Mode enums.ReservationMode
}

// ContentionError reports that the optimistic path lost the stock race on
// every permitted attempt.
type ContentionError struct {
	Key      stock.ItemKey
	Attempts int
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("reservation for product %s lost %d consecutive stock races", e.Key.ProductID, e.Attempts)
}

// FlattenDemand merges duplicate product/variant lines into single entries,
// summing quantities. First-seen order is preserved so partial-failure
// compensation releases in a deterministic order.
func FlattenDemand(lines []Line) []Line {
	type identity struct {
		productID uuid.UUID
		size      string
		sizeSet   bool
		color     string
		colorSet  bool
	}

	index := make(map[identity]int, len(lines))
	flattened := make([]Line, 0, len(lines))
	for _, line := range lines {
		id := identity{productID: line.ProductID}
		if line.Size != nil {
			id.size, id.sizeSet = *line.Size, true
		}
		if line.Color != nil {
			id.color, id.colorSet = *line.Color, true
		}
		if pos, ok := index[id]; ok {
			flattened[pos].Quantity += line.Quantity
			continue
		}
		index[id] = len(flattened)
		flattened = append(flattened, line)
	}
	return flattened
}
