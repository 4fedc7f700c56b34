package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/pkg/billing"
)

type staticPlansSource struct {
	plans map[string]billing.Plan
	err   error
}

func (s staticPlansSource) Load(context.Context) (map[string]billing.Plan, error) {
	return s.plans, s.err
}

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	catalog, err := billing.NewCatalog(context.Background(), staticPlansSource{plans: map[string]billing.Plan{
		"pro":   {Code: "pro", MonthlyPriceID: "price_pro_m", YearlyPriceID: "price_pro_y"},
		"basic": {Code: "basic", MonthlyPriceID: "price_basic_m"},
	}})
	require.NoError(t, err)

	p, ok := catalog.Plan("pro")
	require.True(t, ok)
	assert.Equal(t, "price_pro_y", p.YearlyPriceID)

	_, ok = catalog.Plan("enterprise")
	assert.False(t, ok)

	code, ok := catalog.PlanByPriceID("price_pro_y")
	require.True(t, ok)
	assert.Equal(t, "pro", code)

	code, ok = catalog.PlanByPriceID("price_basic_m")
	require.True(t, ok)
	assert.Equal(t, "basic", code)

	_, ok = catalog.PlanByPriceID("price_unknown")
	assert.False(t, ok)
}

func TestNewCatalogSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("plans file unreadable")
	_, err := billing.NewCatalog(context.Background(), staticPlansSource{err: boom})
	require.ErrorIs(t, err, boom)
}
