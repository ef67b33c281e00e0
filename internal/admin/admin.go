package admin

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/fortunehq/portfolio-api/internal/ledger"
	"github.com/fortunehq/portfolio-api/internal/types"
	"github.com/fortunehq/portfolio-api/pkg/response"
)

// Alert/report thresholds and window sizes for the admin views.
const (
	_largeTransactionAlert   = 10_000.0
	_largestTransactionFloor = 20_000.0
	_topListLimit            = 5
	_recentListLimit         = 10
	_activeUserWindow        = 7 * 24 * time.Hour
	_tradingActivityWindow   = 30 * 24 * time.Hour
	_newUserAlertWindow      = 24 * time.Hour
)

// Overview is the admin landing page aggregate.
type Overview struct {
	LastUser               *UserSummary        `json:"last_user"`
	LastLargestTransaction *TransactionSummary `json:"last_largest_transaction"`
	BiggestPortfolio       *PortfolioSummary   `json:"biggest_portfolio"`
	TotalUsers             int64               `json:"total_users"`
	UsersWithHoldings      int64               `json:"users_with_holdings"`
	TotalTransactionsValue float64             `json:"total_transactions_value"`
}

// UserStats is the admin user-activity report.
type UserStats struct {
	TotalUsers      int64         `json:"total_users"`
	NewUsersToday   int64         `json:"new_users_today"`
	ActiveUsers     int64         `json:"active_users"`
	TopWatchlisters []UserCount   `json:"top_watchlisters"`
	RecentUsers     []UserSummary `json:"recent_users"`
}

// Financials is the admin trading-activity report.
type Financials struct {
	TotalTransactionValue float64              `json:"total_transaction_value"`
	TodayTransactionValue float64              `json:"today_transaction_value"`
	TopTraders            []UserCount          `json:"top_traders"`
	MostTradedStocks      []SymbolCount        `json:"most_traded_stocks"`
	RecentTransactions    []TransactionSummary `json:"recent_transactions"`
}

// Alerts is the admin attention list.
type Alerts struct {
	LargeTransactions []TransactionSummary `json:"large_transactions"`
	NewUsers          []UserSummary        `json:"new_users"`
}

// ChartData feeds the admin charts.
type ChartData struct {
	MostBoughtStocks  []SymbolCount      `json:"most_bought_stocks"`
	LargestPortfolios []PortfolioSummary `json:"largest_portfolios"`
}

// Service serves the read-only admin analytics plus the holdings
// repair pass.
type Service struct {
	db     *Database
	ledger *ledger.Database
}

func NewService(gormDB *gorm.DB, ledgerDB *ledger.Database) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		ledger: ledgerDB,
	}
}

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (s *Service) Overview() (*Overview, error) {
	lastUser, err := s.db.LastUser()
	if err != nil {
		return nil, err
	}
	largest, err := s.db.LargestRecentTransaction(_largestTransactionFloor)
	if err != nil {
		return nil, err
	}
	portfolios, err := s.db.LargestPortfolios(1)
	if err != nil {
		return nil, err
	}
	totalUsers, err := s.db.CountUsers()
	if err != nil {
		return nil, err
	}
	withHoldings, err := s.db.CountUsersWithHoldings()
	if err != nil {
		return nil, err
	}
	totalValue, err := s.db.TotalTransactionValue(time.Time{})
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		LastUser:               lastUser,
		LastLargestTransaction: largest,
		TotalUsers:             totalUsers,
		UsersWithHoldings:      withHoldings,
		TotalTransactionsValue: totalValue,
	}
	if len(portfolios) > 0 {
		overview.BiggestPortfolio = &portfolios[0]
	}
	return overview, nil
}

func (s *Service) UserStats() (*UserStats, error) {
	totalUsers, err := s.db.CountUsers()
	if err != nil {
		return nil, err
	}
	newToday, err := s.db.CountUsersSince(startOfToday())
	if err != nil {
		return nil, err
	}
	active, err := s.db.CountActiveUsers(time.Now().Add(-_activeUserWindow))
	if err != nil {
		return nil, err
	}
	watchlisters, err := s.db.TopWatchlisters(_topListLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.db.RecentUsers(_recentListLimit)
	if err != nil {
		return nil, err
	}

	return &UserStats{
		TotalUsers:      totalUsers,
		NewUsersToday:   newToday,
		ActiveUsers:     active,
		TopWatchlisters: watchlisters,
		RecentUsers:     recent,
	}, nil
}

func (s *Service) Financials() (*Financials, error) {
	totalValue, err := s.db.TotalTransactionValue(time.Time{})
	if err != nil {
		return nil, err
	}
	todayValue, err := s.db.TotalTransactionValue(startOfToday())
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-_tradingActivityWindow)
	traders, err := s.db.TopTraders(cutoff, _topListLimit)
	if err != nil {
		return nil, err
	}
	traded, err := s.db.MostTradedSymbols(cutoff, "", _topListLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.db.RecentTransactions(_recentListLimit)
	if err != nil {
		return nil, err
	}

	return &Financials{
		TotalTransactionValue: totalValue,
		TodayTransactionValue: todayValue,
		TopTraders:            traders,
		MostTradedStocks:      traded,
		RecentTransactions:    recent,
	}, nil
}

func (s *Service) Alerts() (*Alerts, error) {
	large, err := s.db.LargeTransactions(_largeTransactionAlert, _topListLimit)
	if err != nil {
		return nil, err
	}
	newUsers, err := s.db.RecentUsers(_topListLimit)
	if err != nil {
		return nil, err
	}

	// Only surface users registered within the alert window.
	cutoff := time.Now().Add(-_newUserAlertWindow)
	filtered := newUsers[:0]
	for _, user := range newUsers {
		if user.CreatedAt.After(cutoff) {
			filtered = append(filtered, user)
		}
	}

	return &Alerts{
		LargeTransactions: large,
		NewUsers:          filtered,
	}, nil
}

func (s *Service) ChartData() (*ChartData, error) {
	bought, err := s.db.MostTradedSymbols(time.Time{}, "buy", _topListLimit)
	if err != nil {
		return nil, err
	}
	portfolios, err := s.db.LargestPortfolios(_topListLimit)
	if err != nil {
		return nil, err
	}

	return &ChartData{
		MostBoughtStocks:  bought,
		LargestPortfolios: portfolios,
	}, nil
}

// RepairHoldings rebuilds one user's holdings from order history.
func (s *Service) RepairHoldings(userID string) ([]types.Holding, error) {
	holdings, err := s.ledger.RepairHoldings(userID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Int("positions", len(holdings)).
		Msg("holdings repaired from order history")

	return holdings, nil
}

// GinHandlers contains HTTP handlers for admin endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// OverviewHandler handles GET requests for the admin overview
func (h *GinHandlers) OverviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		overview, err := h.service.Overview()
		response.Handle(c, overview, err)
	}
}

// UserStatsHandler handles GET requests for user activity stats
func (h *GinHandlers) UserStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.service.UserStats()
		response.Handle(c, stats, err)
	}
}

// FinancialsHandler handles GET requests for trading activity stats
func (h *GinHandlers) FinancialsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		financials, err := h.service.Financials()
		response.Handle(c, financials, err)
	}
}

// AlertsHandler handles GET requests for the attention list
func (h *GinHandlers) AlertsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		alerts, err := h.service.Alerts()
		response.Handle(c, alerts, err)
	}
}

// ChartDataHandler handles GET requests for chart aggregates
func (h *GinHandlers) ChartDataHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		chart, err := h.service.ChartData()
		response.Handle(c, chart, err)
	}
}

// RepairHoldingsHandler handles POST requests to rebuild a user's
// holdings from order history
// URL parameter: user_id
func (h *GinHandlers) RepairHoldingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if userID == "" {
			response.BadRequest(c, "User ID is required")
			return
		}

		holdings, err := h.service.RepairHoldings(userID)
		response.Handle(c, holdings, err)
	}
}
