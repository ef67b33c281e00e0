package orders

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/fortunehq/portfolio-api/internal/ledger"
	"github.com/fortunehq/portfolio-api/pkg/response"
)

// GinHandlers contains HTTP handlers for order and holdings endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

func handleOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ledger.ErrInsufficientHoldings):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrPrincipalNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrQuoteUnavailable):
		response.BadGateway(c, err.Error())
	case errors.Is(err, ledger.ErrHoldingsStale):
		response.ErrorWithCode(c, response.ErrCodeHoldingsStale, err.Error())
	default:
		response.InternalError(c, "An unexpected error occurred")
	}
}

// PlaceOrderHandler handles POST requests to place buy or sell orders
// Requires a valid JWT token; the username claim selects the account
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		var req PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.PlaceOrder(c.Request.Context(), username, req)
		if err != nil {
			handleOrderError(c, err)
			return
		}

		response.Success(c, result)
	}
}

// GetOrdersHandler handles GET requests for order history
func (h *GinHandlers) GetOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		orderRows, err := h.service.GetOrders(c.Request.Context(), username)
		if err != nil {
			handleOrderError(c, err)
			return
		}

		response.Success(c, orderRows)
	}
}

// GetHoldingsHandler handles GET requests for current holdings
func (h *GinHandlers) GetHoldingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		holdings, err := h.service.GetHoldings(c.Request.Context(), username)
		if err != nil {
			handleOrderError(c, err)
			return
		}

		response.Success(c, holdings)
	}
}
