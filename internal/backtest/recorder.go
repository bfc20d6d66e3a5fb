package backtest

import "flowtrader/internal/models"

// TradeRecorder accumulates closed and partially realized trades.
// Records are append-only; nothing is ever rewritten or dropped.
type TradeRecorder struct {
	trades []models.Trade
}

// NewTradeRecorder creates an empty recorder.
func NewTradeRecorder() *TradeRecorder {
	return &TradeRecorder{trades: make([]models.Trade, 0)}
}

// Record appends a trade.
func (r *TradeRecorder) Record(trade *models.Trade) {
	if trade == nil {
		return
	}
	r.trades = append(r.trades, *trade)
}

// Trades returns the recorded trades in append order.
func (r *TradeRecorder) Trades() []models.Trade {
	return r.trades
}

// Count returns the number of recorded trades.
func (r *TradeRecorder) Count() int { return len(r.trades) }
