package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/fortunehq/portfolio-api/internal/quotes"
	"github.com/fortunehq/portfolio-api/internal/types"
	"github.com/fortunehq/portfolio-api/pkg/response"
)

var (
	ErrAlreadyWatched = errors.New("symbol already in watchlist")
	ErrNotWatched     = errors.New("symbol not in watchlist")
)

type principalResolver interface {
	ResolvePrincipal(username string) (*types.Principal, error)
}

// Service manages watchlist bookmarks. Entries have their own
// lifecycle and are never reconciled against orders.
type Service struct {
	db       *Database
	quotes   quotes.Provider
	resolver principalResolver
}

func NewService(gormDB *gorm.DB, provider quotes.Provider, resolver principalResolver) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		quotes:   provider,
		resolver: resolver,
	}
}

// Add verifies the symbol with the quote provider and bookmarks it with
// the price and change observed at add time.
func (s *Service) Add(ctx context.Context, username, symbol string) (*types.Quote, error) {
	principal, err := s.resolver.ResolvePrincipal(username)
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	quote, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	watched, err := s.db.Exists(principal.UserID, symbol)
	if err != nil {
		return nil, err
	}
	if watched {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyWatched, symbol)
	}

	entry := &types.WatchlistEntry{
		UserID:      principal.UserID,
		Symbol:      symbol,
		PriceAtAdd:  quote.Price,
		ChangeAtAdd: quote.ChangePercent,
	}
	if err := s.db.CreateEntry(entry); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", principal.UserID).
		Str("symbol", symbol).
		Msg("symbol added to watchlist")

	return quote, nil
}

// List returns live quotes for every watched symbol.
func (s *Service) List(ctx context.Context, username string) ([]types.Quote, error) {
	principal, err := s.resolver.ResolvePrincipal(username)
	if err != nil {
		return nil, err
	}

	symbols, err := s.db.ListSymbols(principal.UserID)
	if err != nil {
		return nil, err
	}

	marks, err := s.quotes.GetQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}

	out := make([]types.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		if quote, ok := marks[symbol]; ok {
			out = append(out, *quote)
		} else {
			out = append(out, types.Quote{Symbol: symbol, Name: symbol})
		}
	}
	return out, nil
}

// Remove deletes a bookmark.
func (s *Service) Remove(username, symbol string) error {
	principal, err := s.resolver.ResolvePrincipal(username)
	if err != nil {
		return err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	removed, err := s.db.DeleteEntry(principal.UserID, symbol)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrNotWatched, symbol)
	}
	return nil
}

// GinHandlers contains HTTP handlers for watchlist endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

type addRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

// AddHandler handles POST requests to bookmark a symbol
func (h *GinHandlers) AddHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		var req addRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Stock symbol is required")
			return
		}

		quote, err := h.service.Add(c.Request.Context(), username, req.Symbol)
		switch {
		case errors.Is(err, ErrAlreadyWatched):
			response.Conflict(c, err.Error())
		case errors.Is(err, quotes.ErrSymbolNotFound):
			response.BadRequest(c, "Invalid stock symbol")
		case errors.Is(err, quotes.ErrProviderUnavailable):
			response.BadGateway(c, err.Error())
		default:
			response.Handle(c, quote, err)
		}
	}
}

// ListHandler handles GET requests for the watchlist
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		entries, err := h.service.List(c.Request.Context(), username)
		if errors.Is(err, quotes.ErrProviderUnavailable) {
			response.BadGateway(c, err.Error())
			return
		}
		response.Handle(c, entries, err)
	}
}

// RemoveHandler handles DELETE requests to drop a bookmarked symbol
// Query parameter: symbol
func (h *GinHandlers) RemoveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		symbol := c.Query("symbol")
		if symbol == "" {
			response.BadRequest(c, "Stock symbol is required")
			return
		}

		err := h.service.Remove(username, symbol)
		if errors.Is(err, ErrNotWatched) {
			response.NotFound(c, err.Error())
			return
		}
		response.Handle(c, gin.H{"message": "Stock removed"}, err)
	}
}
