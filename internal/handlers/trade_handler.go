package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stonksnote/internal/services"
)

// TradeHandler serves the trade history.
type TradeHandler struct {
	tradeService services.TradeServicer
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradeService services.TradeServicer) *TradeHandler {
	return &TradeHandler{tradeService: tradeService}
}

// ListTrades pages through the user's trades
// @Summary     List trades
// @Description Page through the authenticated user's trades
// @Tags        trades
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number (default 1)"
// @Param       items     query int    false "Items per page (default 20, max 100)"
// @Param       tab       query string false "all, buy or sell"
// @Param       sort      query string false "created_at, price, shares or total"
// @Param       direction query string false "asc or desc (default desc)"
// @Param       equity    query string false "Ticker filter"
// @Success     200 {object} pagination.PageResponse[models.Trade] "Paginated trades"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /trades [get]
func (h *TradeHandler) ListTrades(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q services.TradeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.tradeService.ListTrades(userID, q)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
