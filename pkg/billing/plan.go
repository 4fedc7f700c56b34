package billing

import "context"

// Plan maps a local plan code to the gateway price ids that bill it.
type Plan struct {
	Code           string
	Name           string
	MonthlyPriceID string
	YearlyPriceID  string
	Seats          int // included seats, 0 means per-seat pricing
	Public         bool
}

// PlansSource loads the plan catalog. Implementations may read YAML files,
// a database, or serve a fixed in-memory set in tests.
type PlansSource interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// Catalog is the loaded plan set with reverse lookup by gateway price id.
type Catalog struct {
	plans     map[string]Plan
	byPriceID map[string]string
}

// NewCatalog builds a catalog from a source. The reverse index lets webhook
// handlers map a gateway price back to a plan code without a price lookup.
func NewCatalog(ctx context.Context, src PlansSource) (*Catalog, error) {
	if src == nil {
		panic("billing: PlansSource is required")
	}
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	byPriceID := make(map[string]string, len(plans)*2)
	for code, plan := range plans {
		if plan.MonthlyPriceID != "" {
			byPriceID[plan.MonthlyPriceID] = code
		}
		if plan.YearlyPriceID != "" {
			byPriceID[plan.YearlyPriceID] = code
		}
	}

	return &Catalog{plans: plans, byPriceID: byPriceID}, nil
}

// Plan returns the plan for a code.
func (c *Catalog) Plan(code string) (Plan, bool) {
	p, ok := c.plans[code]
	return p, ok
}

// PlanByPriceID resolves a gateway price id back to its plan code.
func (c *Catalog) PlanByPriceID(priceID string) (string, bool) {
	code, ok := c.byPriceID[priceID]
	return code, ok
}
