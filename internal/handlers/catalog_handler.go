package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stonksnote/internal/pagination"
	"stonksnote/internal/services"
)

// CatalogHandler serves brokers and equities. Creation is reserved for
// admin routes.
type CatalogHandler struct {
	catalog services.CatalogServicer
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog services.CatalogServicer) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// CreateBrokerRequest is the admin payload for a new broker.
type CreateBrokerRequest struct {
	Name     string          `json:"name" binding:"required,min=1,max=100"`
	Short    string          `json:"short" binding:"max=30"`
	BrokerNo int             `json:"brokerno" binding:"gte=0"`
	Rating   decimal.Decimal `json:"rating" swaggertype:"string"`
	Email    string          `json:"email" binding:"omitempty,email,max=255"`
	URL      string          `json:"url" binding:"omitempty,url,max=255"`
	Country  string          `json:"country" binding:"omitempty,len=2"`
	Logo     string          `json:"logo" binding:"max=255"`
	BuyFees  decimal.Decimal `json:"buyfees" swaggertype:"string"`
	SellFees decimal.Decimal `json:"sellfees" swaggertype:"string"`
	Currency string          `json:"currency" binding:"required,iso4217"`
	IsOnline bool            `json:"is_online"`
}

// CreateEquityRequest is the admin payload for a new equity.
type CreateEquityRequest struct {
	Ticker   string `json:"ticker" binding:"required,ticker"`
	Name     string `json:"name" binding:"required,min=1,max=200"`
	Exchange string `json:"exchange" binding:"required,min=1,max=50"`
	Category string `json:"category" binding:"max=50"`
}

// ListBrokers pages through active brokers
// @Summary     List brokers
// @Tags        catalog
// @Produce     json
// @Security    BearerAuth
// @Param       page  query int false "Page number (default 1)"
// @Param       items query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Broker] "Paginated brokers"
// @Router      /brokers [get]
func (h *CatalogHandler) ListBrokers(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	result, err := h.catalog.ListBrokers(page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListEquities pages through equities
// @Summary     List equities
// @Tags        catalog
// @Produce     json
// @Security    BearerAuth
// @Param       page  query int    false "Page number (default 1)"
// @Param       items query int    false "Items per page (default 20, max 100)"
// @Param       q     query string false "Ticker or name search"
// @Success     200 {object} pagination.PageResponse[models.Equity] "Paginated equities"
// @Router      /equities [get]
func (h *CatalogHandler) ListEquities(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	result, err := h.catalog.ListEquities(page, c.Query("q"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateBroker adds a broker to the catalog
// @Summary     Create broker
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body CreateBrokerRequest true "Broker"
// @Success     201 {object} models.Broker "Created broker"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /admin/brokers [post]
func (h *CatalogHandler) CreateBroker(c *gin.Context) {
	var req CreateBrokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	broker, err := h.catalog.CreateBroker(services.BrokerInput{
		Name:     req.Name,
		Short:    req.Short,
		BrokerNo: req.BrokerNo,
		Rating:   req.Rating,
		Email:    req.Email,
		URL:      req.URL,
		Country:  req.Country,
		Logo:     req.Logo,
		BuyFees:  req.BuyFees,
		SellFees: req.SellFees,
		Currency: req.Currency,
		IsOnline: req.IsOnline,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"broker": broker})
}

// CreateEquity adds an equity to the catalog
// @Summary     Create equity
// @Description Create an equity. The exchange is created on first use.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body CreateEquityRequest true "Equity"
// @Success     201 {object} models.Equity "Created equity"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Duplicate equity"
// @Router      /admin/equities [post]
func (h *CatalogHandler) CreateEquity(c *gin.Context) {
	var req CreateEquityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	equity, err := h.catalog.CreateEquity(services.EquityInput{
		Ticker:   req.Ticker,
		Name:     req.Name,
		Exchange: req.Exchange,
		Category: req.Category,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"equity": equity})
}
