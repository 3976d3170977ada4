package workers

import (
	"testing"

	"github.com/Mariosat15/Chatvot-sub008/models"

	"github.com/stretchr/testify/assert"
)

func TestMarkPriceIsSideAware(t *testing.T) {
	q := Quote{Symbol: "BTCUSD", Bid: 99.5, Ask: 100.5}

	assert.Equal(t, 99.5, MarkPrice(models.SideLong, q), "a long exits by selling at the bid")
	assert.Equal(t, 100.5, MarkPrice(models.SideShort, q), "a short exits by buying back at the ask")
}

func TestUnrealizedPnl(t *testing.T) {
	// long: bought at 100, marked at 95 → losing
	assert.Equal(t, -10.0, UnrealizedPnl(models.SideLong, 100, 2, 95))
	// long in profit
	assert.Equal(t, 20.0, UnrealizedPnl(models.SideLong, 100, 2, 110))
	// short: sold at 100, marked at 110 → losing
	assert.Equal(t, -20.0, UnrealizedPnl(models.SideShort, 100, 2, 110))
	// short in profit
	assert.Equal(t, 10.0, UnrealizedPnl(models.SideShort, 100, 2, 95))
}

func TestSymbolUnionDeduplicatesAndSorts(t *testing.T) {
	positions := []models.TradingPosition{
		{Symbol: "ETHUSD"},
		{Symbol: "BTCUSD"},
		{Symbol: "ETHUSD"},
		{Symbol: "SOLUSD"},
		{Symbol: "BTCUSD"},
	}

	assert.Equal(t, []string{"BTCUSD", "ETHUSD", "SOLUSD"}, SymbolUnion(positions))
}

func TestSymbolUnionEmpty(t *testing.T) {
	assert.Empty(t, SymbolUnion(nil))
}

func openPosition(id, symbol string, side models.PositionSide, qty, entry, margin float64) models.TradingPosition {
	return models.TradingPosition{
		ID:         id,
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		EntryPrice: entry,
		Margin:     margin,
		Status:     models.PositionOpen,
	}
}

func TestBuildLiquidationClosesEveryPricedOpenPosition(t *testing.T) {
	positions := []models.TradingPosition{
		openPosition("pos-1", "BTCUSD", models.SideLong, 1, 100, 50),
		openPosition("pos-2", "ETHUSD", models.SideShort, 2, 50, 30),
		openPosition("pos-3", "SOLUSD", models.SideLong, 5, 20, 10), // no quote this sweep
	}
	quotes := map[string]Quote{
		"BTCUSD": {Symbol: "BTCUSD", Bid: 90, Ask: 91},
		"ETHUSD": {Symbol: "ETHUSD", Bid: 44, Ask: 45},
	}

	out := BuildLiquidation(positions, quotes, true)

	// solvency: every priced open position must be in the close set
	closedIDs := make(map[string]PositionClose, len(out.Closes))
	for _, pc := range out.Closes {
		closedIDs[pc.PositionID] = pc
	}
	assert.Len(t, out.Closes, 2)
	assert.Contains(t, closedIDs, "pos-1")
	assert.Contains(t, closedIDs, "pos-2")
	assert.NotContains(t, closedIDs, "pos-3", "unpriced positions wait for the next sweep")

	// long exits at bid, short at ask
	assert.Equal(t, 90.0, closedIDs["pos-1"].Mark)
	assert.Equal(t, -10.0, closedIDs["pos-1"].Pnl)
	assert.Equal(t, 45.0, closedIDs["pos-2"].Mark)
	assert.Equal(t, 10.0, closedIDs["pos-2"].Pnl)

	// aggregates stay coherent with the individual closes
	assert.Equal(t, 0.0, out.Realized)
	assert.Equal(t, 80.0, out.FreedMargin)
	assert.Equal(t, 1, out.Wins)
	assert.Equal(t, 10.0, out.GrossProfit)
	assert.Equal(t, 10.0, out.GrossLoss)
	assert.True(t, out.Disqualify)
}

func TestBuildLiquidationUnpricedOnlyClosesNothing(t *testing.T) {
	positions := []models.TradingPosition{
		openPosition("pos-1", "DOGEUSD", models.SideLong, 100, 0.5, 25),
	}

	out := BuildLiquidation(positions, map[string]Quote{}, true)

	assert.Empty(t, out.Closes)
	assert.Equal(t, 0.0, out.Realized)
	assert.False(t, out.Disqualify, "no close happened, so nothing justifies a disqualification yet")
}

func TestBuildLiquidationIgnoresAlreadyClosedPositions(t *testing.T) {
	closed := openPosition("pos-1", "BTCUSD", models.SideLong, 1, 100, 50)
	closed.Status = models.PositionClosed
	positions := []models.TradingPosition{
		closed,
		openPosition("pos-2", "BTCUSD", models.SideLong, 1, 100, 50),
	}
	quotes := map[string]Quote{"BTCUSD": {Symbol: "BTCUSD", Bid: 95, Ask: 96}}

	out := BuildLiquidation(positions, quotes, false)

	assert.Len(t, out.Closes, 1)
	assert.Equal(t, "pos-2", out.Closes[0].PositionID)
	assert.False(t, out.Disqualify)
}
