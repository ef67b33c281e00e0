package stocks

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/fortunehq/portfolio-api/internal/quotes"
	"github.com/fortunehq/portfolio-api/internal/types"
	"github.com/fortunehq/portfolio-api/pkg/response"
)

// Service serves symbol lookups and maintains the cached quote table
// for the tracked symbol universe.
type Service struct {
	db      *Database
	quotes  quotes.Provider
	symbols []string
}

func NewService(gormDB *gorm.DB, provider quotes.Provider, symbols []string) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		quotes:  provider,
		symbols: symbols,
	}
}

// Lookup returns a live quote for one symbol.
func (s *Service) Lookup(ctx context.Context, symbol string) (*types.Quote, error) {
	return s.quotes.GetQuote(ctx, symbol)
}

// RefreshCache pulls fresh quotes for the tracked universe and upserts
// them into the stocks table. Symbols the provider cannot price are
// skipped; the refresh reports how many rows were updated.
func (s *Service) RefreshCache(ctx context.Context) (int, error) {
	marks, err := s.quotes.GetQuotes(ctx, s.symbols)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, symbol := range s.symbols {
		quote, ok := marks[symbol]
		if !ok {
			log.Debug().Str("symbol", symbol).Msg("no quote for tracked symbol, skipping")
			continue
		}

		row := &types.Stock{
			Symbol:           quote.Symbol,
			Name:             quote.Name,
			Price:            quote.Price,
			ChangePercent:    quote.ChangePercent,
			FiftyTwoWeekHigh: quote.FiftyTwoWeekHigh,
			FiftyTwoWeekLow:  quote.FiftyTwoWeekLow,
			PriceToBook:      quote.PriceToBook,
			TrailingPE:       quote.TrailingPE,
		}
		if err := s.db.UpsertStock(row); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("failed to cache stock")
			continue
		}
		updated++
	}

	log.Info().Int("updated", updated).Int("tracked", len(s.symbols)).Msg("stock cache refreshed")
	return updated, nil
}

// ListCached returns the cached rows for the tracked universe.
func (s *Service) ListCached() ([]types.Stock, error) {
	return s.db.ListStocks()
}

// GinHandlers contains HTTP handlers for stock lookup endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// LookupHandler handles GET requests for a single symbol quote
// Query parameter: symbol
func (h *GinHandlers) LookupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := strings.TrimSpace(c.Query("symbol"))
		if symbol == "" {
			response.BadRequest(c, "Stock symbol is required")
			return
		}

		quote, err := h.service.Lookup(c.Request.Context(), symbol)
		switch {
		case errors.Is(err, quotes.ErrSymbolNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, quotes.ErrProviderUnavailable):
			response.BadGateway(c, err.Error())
		default:
			response.Handle(c, quote, err)
		}
	}
}

// ListCachedHandler handles GET requests for the cached stock universe
func (h *GinHandlers) ListCachedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := h.service.ListCached()
		response.Handle(c, rows, err)
	}
}

// RefreshHandler handles POST requests to refresh the stock cache
// Requires admin access
func (h *GinHandlers) RefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		updated, err := h.service.RefreshCache(c.Request.Context())
		if errors.Is(err, quotes.ErrProviderUnavailable) {
			response.BadGateway(c, err.Error())
			return
		}
		response.Handle(c, gin.H{"updated": updated}, err)
	}
}
