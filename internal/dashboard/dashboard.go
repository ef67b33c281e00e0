package dashboard

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fortunehq/portfolio-api/internal/quotes"
	"github.com/fortunehq/portfolio-api/internal/types"
	"github.com/fortunehq/portfolio-api/pkg/response"
)

// Market indices shown on the dashboard: S&P 500, NASDAQ, Dow Jones.
var indexSymbols = []string{"^GSPC", "^IXIC", "^DJI"}

const _newsLimit = 5

type principalResolver interface {
	ResolvePrincipal(username string) (*types.Principal, error)
}

// IndexQuote is one market index row in the overview.
type IndexQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

// TradeStats reports the most bought and most sold symbols overall.
type TradeStats struct {
	MostBought *SymbolVolume `json:"most_bought"`
	MostSold   *SymbolVolume `json:"most_sold"`
}

// Service backs the user dashboard: market overview, news, total
// portfolio value and trade statistics. All reads, no writes.
type Service struct {
	db       *Database
	quotes   quotes.Provider
	news     *NewsClient
	resolver principalResolver
}

func NewService(gormDB *gorm.DB, provider quotes.Provider, news *NewsClient, resolver principalResolver) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		quotes:   provider,
		news:     news,
		resolver: resolver,
	}
}

// MarketOverview returns live quotes for the tracked market indices.
func (s *Service) MarketOverview(ctx context.Context) ([]IndexQuote, error) {
	marks, err := s.quotes.GetQuotes(ctx, indexSymbols)
	if err != nil {
		return nil, err
	}

	overview := make([]IndexQuote, 0, len(indexSymbols))
	for _, symbol := range indexSymbols {
		if quote, ok := marks[symbol]; ok {
			overview = append(overview, IndexQuote{
				Symbol: symbol,
				Price:  quote.Price,
				Change: quote.ChangePercent,
			})
		}
	}
	return overview, nil
}

// PortfolioValue sums quantity times live price over the user's
// holdings: the mark-to-market value of the whole portfolio.
func (s *Service) PortfolioValue(ctx context.Context, username string) (float64, error) {
	principal, err := s.resolver.ResolvePrincipal(username)
	if err != nil {
		return 0, err
	}

	holdings, err := s.db.ListHoldings(principal.UserID)
	if err != nil {
		return 0, err
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}

	marks, err := s.quotes.GetQuotes(ctx, symbols)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, h := range holdings {
		if quote, ok := marks[h.Symbol]; ok {
			total += float64(h.Quantity) * quote.Price
		} else {
			// Fall back to the value at last trade.
			total += h.Value
		}
	}
	return total, nil
}

// TradeStats returns the most bought and most sold symbols.
func (s *Service) TradeStats() (*TradeStats, error) {
	mostBought, err := s.db.TopSymbolByVolume("buy")
	if err != nil {
		return nil, err
	}
	mostSold, err := s.db.TopSymbolByVolume("sell")
	if err != nil {
		return nil, err
	}
	return &TradeStats{MostBought: mostBought, MostSold: mostSold}, nil
}

// News returns the latest market news snippets.
func (s *Service) News(ctx context.Context) ([]NewsItem, error) {
	return s.news.TopNews(ctx, _newsLimit)
}

// GinHandlers contains HTTP handlers for dashboard endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// MarketOverviewHandler handles GET requests for index quotes
func (h *GinHandlers) MarketOverviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		overview, err := h.service.MarketOverview(c.Request.Context())
		if errors.Is(err, quotes.ErrProviderUnavailable) {
			response.BadGateway(c, err.Error())
			return
		}
		response.Handle(c, gin.H{"market_overview": overview}, err)
	}
}

// PortfolioValueHandler handles GET requests for total portfolio value
func (h *GinHandlers) PortfolioValueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		total, err := h.service.PortfolioValue(c.Request.Context(), username)
		if errors.Is(err, quotes.ErrProviderUnavailable) {
			response.BadGateway(c, err.Error())
			return
		}
		response.Handle(c, gin.H{"total_portfolio_value": total}, err)
	}
}

// TradeStatsHandler handles GET requests for most bought/sold symbols
func (h *GinHandlers) TradeStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.service.TradeStats()
		response.Handle(c, stats, err)
	}
}

// NewsHandler handles GET requests for market news snippets
func (h *GinHandlers) NewsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		news, err := h.service.News(c.Request.Context())
		if errors.Is(err, quotes.ErrProviderUnavailable) {
			response.BadGateway(c, err.Error())
			return
		}
		response.Handle(c, gin.H{"news_snippets": news}, err)
	}
}
