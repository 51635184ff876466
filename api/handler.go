package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"algotrade/ledger"
	"algotrade/trading"
)

// StateSource is what the handlers read. *trading.Engine satisfies it.
type StateSource interface {
	Snapshot() trading.Snapshot
	Trades() []ledger.Trade
	EquityHistory() []trading.EquitySample
}

// Handler holds the read side of the API.
type Handler struct {
	src StateSource
}

func NewHandler(src StateSource) *Handler {
	return &Handler{src: src}
}

// GetStatus returns the full engine snapshot.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": h.src.Snapshot(),
	})
}

// GetPositions returns open positions only.
func (h *Handler) GetPositions(c *gin.Context) {
	snap := h.src.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"count": len(snap.Positions),
		"data":  snap.Positions,
	})
}

// GetTrades returns the audit trail.
func (h *Handler) GetTrades(c *gin.Context) {
	trades := h.src.Trades()
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"count": len(trades),
		"data":  trades,
	})
}

// GetEquity returns the poll-loop equity marks.
func (h *Handler) GetEquity(c *gin.Context) {
	history := h.src.EquityHistory()
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"count": len(history),
		"data":  history,
	})
}
