package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"resty.dev/v3"

	"github.com/fortunehq/portfolio-api/internal/config"
	"github.com/fortunehq/portfolio-api/internal/types"
)

const _quoteURL = "/v7/finance/quote"

var (
	// ErrSymbolNotFound means the provider answered but has no data
	// for the requested symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrProviderUnavailable covers transport failures, timeouts and
	// provider-side errors. Callers may retry.
	ErrProviderUnavailable = errors.New("quote provider unavailable")
)

// Provider maps ticker symbols to current market quotes.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*types.Quote, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]*types.Quote, error)
}

// Client is a quote provider adapter over a Yahoo-style quote endpoint.
// It is read-only and holds no state beyond the HTTP client.
type Client struct {
	c *resty.Client
}

func NewClient(cfg config.QuotesConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &Client{c: client}
}

type quoteResult struct {
	Symbol                     string  `json:"symbol"`
	LongName                   string  `json:"longName"`
	ShortName                  string  `json:"shortName"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	FiftyTwoWeekHigh           float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow            float64 `json:"fiftyTwoWeekLow"`
	PriceToBook                float64 `json:"priceToBook"`
	TrailingPE                 float64 `json:"trailingPE"`
}

type quoteEnvelope struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// GetQuote fetches the current quote for one symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*types.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrSymbolNotFound)
	}

	results, err := c.fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	return toQuote(results[0]), nil
}

// GetQuotes fetches quotes for a batch of symbols in one request.
// Symbols the provider does not know are absent from the result map;
// only transport-level failures return an error.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) (map[string]*types.Quote, error) {
	if len(symbols) == 0 {
		return map[string]*types.Quote{}, nil
	}

	upper := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			upper = append(upper, s)
		}
	}

	results, err := c.fetch(ctx, strings.Join(upper, ","))
	if err != nil {
		return nil, err
	}

	out := make(map[string]*types.Quote, len(results))
	for _, r := range results {
		out[strings.ToUpper(r.Symbol)] = toQuote(r)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, symbols string) ([]quoteResult, error) {
	resp, err := c.c.R().
		SetContext(ctx).
		SetQueryParam("symbols", symbols).
		SetResult(&quoteEnvelope{}).
		Get(_quoteURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		if resp.StatusCode() == 404 {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbols)
		}
		return nil, fmt.Errorf("%w: status %s", ErrProviderUnavailable, resp.Status())
	}

	envelope, ok := resp.Result().(*quoteEnvelope)
	if !ok {
		return nil, fmt.Errorf("%w: malformed response", ErrProviderUnavailable)
	}
	if envelope.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, envelope.QuoteResponse.Error.Description)
	}

	return envelope.QuoteResponse.Result, nil
}

func toQuote(r quoteResult) *types.Quote {
	name := r.LongName
	if name == "" {
		name = r.ShortName
	}
	if name == "" {
		name = r.Symbol
	}

	return &types.Quote{
		Symbol:           strings.ToUpper(r.Symbol),
		Name:             name,
		Price:            r.RegularMarketPrice,
		ChangePercent:    r.RegularMarketChangePercent,
		FiftyTwoWeekHigh: r.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  r.FiftyTwoWeekLow,
		PriceToBook:      r.PriceToBook,
		TrailingPE:       r.TrailingPE,
	}
}
