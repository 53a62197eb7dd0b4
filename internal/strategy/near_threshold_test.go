package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

type lossSet map[string]bool

func (l lossSet) HasRecentLossOnEvent(id string) bool { return l[id] }

func params() Params {
	return Params{
		EntryPriceMin:            0.86,
		EntryPriceMax:            0.89,
		MinHoursToExpiryForEntry: 3,
		MaxVolatility30mForEntry: 0.01,
		MaxEntryTranchesPerEvent: 2,
		FirstEntrySize:           0.03,
		TrancheSize:              0.02,
	}
}

func tick(id string, yes, vol, hours float64) domain.MarketTick {
	ev := domain.MarketEvent{ID: id, Title: id, SecondsToResolution: hours * 3600}
	return domain.NewMarketTick(ev, yes, vol, 500, 1000, time.Unix(0, 0))
}

func emptyContext() Context {
	return Context{Risk: lossSet{}, OpenTranches: map[string]int{}, HasOpen: map[string]bool{}}
}

func TestEvaluateSkipRules(t *testing.T) {
	tests := []struct {
		name string
		tick domain.MarketTick
		ctx  func(Context) Context
	}{
		{"too close to expiry", tick("e1", 0.87, 0.001, 2.9), nil},
		{"too volatile", tick("e1", 0.87, 0.02, 5), nil},
		{"recent loss", tick("e1", 0.87, 0.001, 5), func(c Context) Context {
			c.Risk = lossSet{"e1": true}
			return c
		}},
		{"tranches exhausted", tick("e1", 0.87, 0.001, 5), func(c Context) Context {
			c.OpenTranches["e1"] = 2
			c.HasOpen["e1"] = true
			return c
		}},
		{"price outside band", tick("e1", 0.91, 0.001, 5), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := emptyContext()
			if tt.ctx != nil {
				c = tt.ctx(c)
			}
			assert.Empty(t, Evaluate([]domain.MarketTick{tt.tick}, c, params()))
		})
	}
}

func TestEvaluateFirstEntryAndTranche(t *testing.T) {
	c := emptyContext()
	orders := Evaluate([]domain.MarketTick{tick("e1", 0.87, 0.001, 5)}, c, params())
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderRequest{
		EventID: "e1", Side: domain.SideYes, Price: 0.87, Size: 0.03, Kind: domain.OrderKindLimitBuy,
	}, orders[0])

	c.OpenTranches["e1"] = 1
	c.HasOpen["e1"] = true
	orders = Evaluate([]domain.MarketTick{tick("e1", 0.87, 0.001, 5)}, c, params())
	require.Len(t, orders, 1)
	assert.Equal(t, 0.02, orders[0].Size)
}

func TestEvaluateNoSideAndBothSides(t *testing.T) {
	orders := Evaluate([]domain.MarketTick{tick("e1", 0.12, 0.001, 5)}, emptyContext(), params())
	require.Len(t, orders, 1)
	assert.Equal(t, domain.SideNo, orders[0].Side)
	assert.InDelta(t, 0.88, orders[0].Price, 1e-9)

	p := params()
	p.EntryPriceMin, p.EntryPriceMax = 0.4, 0.6
	orders = Evaluate([]domain.MarketTick{tick("e1", 0.5, 0.001, 5)}, emptyContext(), p)
	require.Len(t, orders, 2)
	assert.Equal(t, domain.SideYes, orders[0].Side)
	assert.Equal(t, domain.SideNo, orders[1].Side)
}

func TestEvaluateKeepsTickOrderAndIsRepeatable(t *testing.T) {
	ticks := []domain.MarketTick{
		tick("b", 0.88, 0.001, 6),
		tick("skip", 0.95, 0.001, 6),
		tick("a", 0.86, 0.001, 6),
	}
	first := Evaluate(ticks, emptyContext(), params())
	require.Len(t, first, 2)
	assert.Equal(t, "b", first[0].EventID)
	assert.Equal(t, "a", first[1].EventID)
	assert.Equal(t, first, Evaluate(ticks, emptyContext(), params()))
}
