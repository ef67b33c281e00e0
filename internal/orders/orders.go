package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fortunehq/portfolio-api/internal/auth"
	"github.com/fortunehq/portfolio-api/internal/ledger"
	"github.com/fortunehq/portfolio-api/internal/quotes"
	"github.com/fortunehq/portfolio-api/internal/types"
)

var (
	// ErrInvalidRequest covers bad order input. No side effects.
	ErrInvalidRequest = errors.New("invalid order request")
	// ErrPrincipalNotFound means the verified token names an unknown user.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrQuoteUnavailable means the quote step failed; nothing persisted.
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

// PrincipalResolver maps a verified username claim to an account.
type PrincipalResolver interface {
	ResolvePrincipal(username string) (*types.Principal, error)
}

// PlaceOrderRequest is the inbound payload for order placement.
type PlaceOrderRequest struct {
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
	OrderType string `json:"order_type"`
}

// Store is the ledger surface order execution needs.
// *ledger.Database satisfies it.
type Store interface {
	ExecuteOrder(order *types.Order, name string, allowShort bool) (*types.Holding, error)
	ListHoldings(userID string) ([]types.Holding, error)
	ListOrders(userID string) ([]types.Order, error)
}

// Service is the order execution service. It validates a request,
// resolves the principal, captures a live quote, appends the order and
// reconciles the holdings aggregate.
type Service struct {
	store      Store
	quotes     quotes.Provider
	resolver   PrincipalResolver
	allowShort bool
}

func NewService(store Store, provider quotes.Provider, resolver PrincipalResolver, allowShort bool) *Service {
	return &Service{
		store:      store,
		quotes:     provider,
		resolver:   resolver,
		allowShort: allowShort,
	}
}

func normalizeOrderType(orderType string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(orderType))
	if normalized != "buy" && normalized != "sell" {
		return "", fmt.Errorf("%w: order type must be buy or sell", ErrInvalidRequest)
	}
	return normalized, nil
}

func (s *Service) validate(req *PlaceOrderRequest) error {
	if strings.TrimSpace(req.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidRequest)
	}

	orderType, err := normalizeOrderType(req.OrderType)
	if err != nil {
		return err
	}

	req.OrderType = orderType
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	return nil
}

// PlaceOrder executes one buy or sell for the named user.
//
// The sequence is validate, resolve principal, quote, append order,
// reconcile holding. A quote failure aborts before anything is written.
// Once the order row is appended it stands: a reconcile failure surfaces
// as ledger.ErrHoldingsStale rather than rolling the order back.
func (s *Service) PlaceOrder(ctx context.Context, username string, req PlaceOrderRequest) (*types.OrderResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	principal, err := s.resolver.ResolvePrincipal(username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPrincipalNotFound, username)
		}
		return nil, err
	}

	quote, err := s.quotes.GetQuote(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	order := &types.Order{
		OrderID:     uuid.New().String(),
		UserID:      principal.UserID,
		Symbol:      req.Symbol,
		Quantity:    req.Quantity,
		Type:        req.OrderType,
		Price:       quote.Price,
		DateOfOrder: time.Now(),
	}

	logger := log.With().
		Str("order_id", order.OrderID).
		Str("user_id", order.UserID).
		Str("symbol", order.Symbol).
		Str("type", order.Type).
		Int64("quantity", order.Quantity).
		Float64("price", order.Price).
		Logger()

	holding, err := s.store.ExecuteOrder(order, quote.Name, s.allowShort)
	if err != nil {
		if errors.Is(err, ledger.ErrHoldingsStale) {
			logger.Error().Err(err).Msg("order recorded but holdings reconcile failed")
		} else {
			logger.Warn().Err(err).Msg("order rejected")
		}
		return nil, err
	}

	logger.Info().
		Int64("holding_quantity", holding.Quantity).
		Float64("holding_value", holding.Value).
		Msg("order executed")

	// The trade is durable at this point. If the full holdings read
	// fails, answer with the position the execute already returned
	// rather than failing a recorded order.
	holdings, err := s.store.ListHoldings(principal.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("holdings read failed after recorded order")
		holdings = []types.Holding{*holding}
	}

	return &types.OrderResult{
		Order: types.OrderSummary{
			Symbol:    order.Symbol,
			Price:     order.Price,
			Quantity:  order.Quantity,
			OrderType: order.Type,
			CreatedAt: order.DateOfOrder,
		},
		UpdatedHoldings: holdings,
	}, nil
}

// GetOrders returns the user's order history, newest first, annotated
// with the current market price per symbol.
func (s *Service) GetOrders(ctx context.Context, username string) ([]types.AnnotatedOrder, error) {
	principal, err := s.resolvePrincipal(username)
	if err != nil {
		return nil, err
	}

	orderRows, err := s.store.ListOrders(principal.UserID)
	if err != nil {
		return nil, err
	}

	marks, err := s.quotes.GetQuotes(ctx, symbolsOfOrders(orderRows))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	annotated := make([]types.AnnotatedOrder, 0, len(orderRows))
	for _, order := range orderRows {
		a := types.AnnotatedOrder{Order: order}
		if quote, ok := marks[order.Symbol]; ok {
			a.CurrentPrice = quote.Price
			a.ChangePercent = quote.ChangePercent
		}
		annotated = append(annotated, a)
	}
	return annotated, nil
}

// GetHoldings returns the user's holdings annotated with the current
// price and percent change per symbol.
func (s *Service) GetHoldings(ctx context.Context, username string) ([]types.AnnotatedHolding, error) {
	principal, err := s.resolvePrincipal(username)
	if err != nil {
		return nil, err
	}

	holdings, err := s.store.ListHoldings(principal.UserID)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}

	marks, err := s.quotes.GetQuotes(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	annotated := make([]types.AnnotatedHolding, 0, len(holdings))
	for _, h := range holdings {
		a := types.AnnotatedHolding{
			Symbol:   h.Symbol,
			Name:     h.Name,
			Quantity: h.Quantity,
			Value:    h.Value,
		}
		if quote, ok := marks[h.Symbol]; ok {
			a.CurrentPrice = quote.Price
			a.ChangePercent = quote.ChangePercent
		}
		annotated = append(annotated, a)
	}
	return annotated, nil
}

func (s *Service) resolvePrincipal(username string) (*types.Principal, error) {
	principal, err := s.resolver.ResolvePrincipal(username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPrincipalNotFound, username)
		}
		return nil, err
	}
	return principal, nil
}

func symbolsOfOrders(orderRows []types.Order) []string {
	seen := make(map[string]bool, len(orderRows))
	symbols := make([]string, 0, len(orderRows))
	for _, order := range orderRows {
		if !seen[order.Symbol] {
			seen[order.Symbol] = true
			symbols = append(symbols, order.Symbol)
		}
	}
	return symbols
}
