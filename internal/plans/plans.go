package plans

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Plan is a catalog entry. The catalog is read-only for the payment engine;
// prices are snapshotted onto the order at creation time.
type Plan struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// PriceCents returns the plan price in cents, the unit orders are stored in.
func (p Plan) PriceCents() int64 {
	return p.Price.Mul(decimal.NewFromInt(100)).IntPart()
}

func (p Plan) Label() string {
	return fmt.Sprintf("%s - R$ %s", p.Name, p.Price.StringFixed(2))
}

var catalog = map[string]Plan{
	"vip7":  {ID: "vip7", Name: "VIP 7 days", Price: decimal.RequireFromString("9.90")},
	"vip30": {ID: "vip30", Name: "VIP 30 days", Price: decimal.RequireFromString("29.90")},
	"vip90": {ID: "vip90", Name: "VIP 90 days", Price: decimal.RequireFromString("69.90")},
}

func Get(id string) (Plan, bool) {
	p, ok := catalog[id]
	return p, ok
}

// All returns the catalog ordered by price, cheapest first.
func All() []Plan {
	out := make([]Plan, 0, len(catalog))
	for _, p := range catalog {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out
}
