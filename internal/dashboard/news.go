package dashboard

import (
	"context"
	"fmt"

	"resty.dev/v3"

	"github.com/fortunehq/portfolio-api/internal/config"
	"github.com/fortunehq/portfolio-api/internal/quotes"
)

const _newsURL = "/query"

// NewsItem is one market news snippet.
type NewsItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type newsEnvelope struct {
	Feed []struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
		URL     string `json:"url"`
	} `json:"feed"`
}

// NewsClient proxies the market news provider.
type NewsClient struct {
	c      *resty.Client
	apiKey string
}

func NewNewsClient(cfg config.NewsConfig) *NewsClient {
	return &NewsClient{
		c:      resty.New().SetBaseURL(cfg.BaseURL),
		apiKey: cfg.APIKey,
	}
}

// TopNews returns up to limit recent news snippets.
func (n *NewsClient) TopNews(ctx context.Context, limit int) ([]NewsItem, error) {
	resp, err := n.c.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "NEWS_SENTIMENT",
			"apikey":   n.apiKey,
		}).
		SetResult(&newsEnvelope{}).
		Get(_newsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", quotes.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %s", quotes.ErrProviderUnavailable, resp.Status())
	}

	envelope, ok := resp.Result().(*newsEnvelope)
	if !ok {
		return nil, fmt.Errorf("%w: malformed news response", quotes.ErrProviderUnavailable)
	}

	items := make([]NewsItem, 0, limit)
	for _, entry := range envelope.Feed {
		if len(items) == limit {
			break
		}
		items = append(items, NewsItem{
			Title:       entry.Title,
			Description: entry.Summary,
			URL:         entry.URL,
		})
	}
	return items, nil
}
