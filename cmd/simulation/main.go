package main

import (
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"resty.dev/v3"

	"github.com/fortunehq/portfolio-api/internal/auth"
	"github.com/fortunehq/portfolio-api/internal/config"
	"github.com/fortunehq/portfolio-api/internal/database"
	"github.com/fortunehq/portfolio-api/internal/ledger"
	"github.com/fortunehq/portfolio-api/internal/orders"
	"github.com/fortunehq/portfolio-api/internal/quotes"
	"github.com/fortunehq/portfolio-api/internal/types"
	"github.com/fortunehq/portfolio-api/pkg/middleware"
)

const (
	minOrders       = 15
	maxOrders       = 150
	numWorkers      = 5
	serverAddress   = "http://localhost:8080"
	providerAddress = ":9090"
	jwtSecret       = "simulation-secret"
)

var (
	symbols    = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}
	orderTypes = []string{"buy", "sell"}

	// Base prices for the mock quote provider; each quote applies a
	// small random variance around these.
	basePrices = map[string]float64{
		"AAPL":  228.0,
		"GOOGL": 167.0,
		"MSFT":  415.0,
		"AMZN":  186.0,
		"META":  563.0,
	}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient drives one simulated user against the portfolio API
type simulationClient struct {
	c         *resty.Client
	username  string
	authToken string
	stats     map[string]*routeStats
}

type apiEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Token           string             `json:"token"`
		Order           types.OrderSummary `json:"order"`
		UpdatedHoldings []types.Holding    `json:"updated_holdings"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newSimulationClient registers a fresh account and logs in
func newSimulationClient(workerID int, stats map[string]*routeStats) (*simulationClient, error) {
	sc := &simulationClient{
		c:        resty.New().SetBaseURL(serverAddress).SetTimeout(10 * time.Second),
		username: fmt.Sprintf("trader_%d_%d", workerID, rand.Intn(100000)),
		stats:    stats,
	}

	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	var result apiEnvelope
	resp, err := sc.c.R().
		SetBody(map[string]string{
			"username": sc.username,
			"email":    sc.username + "@example.com",
			"password": "simulation-pass",
		}).
		SetResult(&result).
		Post("/api/v1/auth/signup")
	if err != nil {
		return nil, fmt.Errorf("signup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.IsError() || result.Data.Token == "" {
		return nil, fmt.Errorf("signup failed with status %s", resp.Status())
	}

	sc.authToken = result.Data.Token
	return sc, nil
}

// placeOrder submits a buy or sell order and returns the post-trade holdings
func (sc *simulationClient) placeOrder(symbol string, quantity int64, orderType string) ([]types.Holding, error) {
	start := time.Now()
	defer func() {
		sc.stats["order"].addDuration(time.Since(start))
	}()

	var result apiEnvelope
	resp, err := sc.c.R().
		SetAuthToken(sc.authToken).
		SetBody(orders.PlaceOrderRequest{
			Symbol:    symbol,
			Quantity:  quantity,
			OrderType: orderType,
		}).
		SetResult(&result).
		Post("/api/v1/orders")
	if err != nil {
		sc.stats["order"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		sc.stats["order"].failures++
		if result.Error != nil {
			return nil, fmt.Errorf("place order failed: %s (%s)", result.Error.Message, result.Error.Code)
		}
		return nil, fmt.Errorf("place order failed with status %s", resp.Status())
	}

	return result.Data.UpdatedHoldings, nil
}

// getHoldings fetches the user's annotated holdings
func (sc *simulationClient) getHoldings() ([]types.AnnotatedHolding, error) {
	start := time.Now()
	defer func() {
		sc.stats["holdings"].addDuration(time.Since(start))
	}()

	var result struct {
		Success bool                     `json:"success"`
		Data    []types.AnnotatedHolding `json:"data"`
	}
	resp, err := sc.c.R().
		SetAuthToken(sc.authToken).
		SetResult(&result).
		Get("/api/v1/holdings")
	if err != nil {
		sc.stats["holdings"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		sc.stats["holdings"].failures++
		return nil, fmt.Errorf("get holdings failed with status %s", resp.Status())
	}

	return result.Data, nil
}

// getOrders fetches the user's order history
func (sc *simulationClient) getOrders() (int, error) {
	start := time.Now()
	defer func() {
		sc.stats["orders"].addDuration(time.Since(start))
	}()

	var result struct {
		Success bool                   `json:"success"`
		Data    []types.AnnotatedOrder `json:"data"`
	}
	resp, err := sc.c.R().
		SetAuthToken(sc.authToken).
		SetResult(&result).
		Get("/api/v1/orders")
	if err != nil {
		sc.stats["orders"].failures++
		return 0, err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		sc.stats["orders"].failures++
		return 0, fmt.Errorf("get orders failed with status %s", resp.Status())
	}

	return len(result.Data), nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func printPerformanceStats(stats map[string]*routeStats) {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, rs := range stats {
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			rs.name,
			rs.totalCalls,
			rs.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the portfolio simulation: it starts a mock quote provider
// and the API server, then drives concurrent simulated traders
func main() {
	go func() {
		if err := startQuoteProvider(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start mock quote provider")
		}
	}()

	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for servers to start
	time.Sleep(2 * time.Second)

	stats := map[string]*routeStats{
		"auth":     {name: "Signup"},
		"order":    {name: "Place Order"},
		"orders":   {name: "Order History"},
		"holdings": {name: "Holdings"},
	}

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	summary := struct {
		mu           sync.Mutex
		TotalOrders  int
		FailedOrders int
		TotalValue   float64
		Symbols      map[string]int
		Types        map[string]int
	}{
		Symbols: make(map[string]int),
		Types:   make(map[string]int),
	}

	startTime := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			client, err := newSimulationClient(workerID, stats)
			if err != nil {
				log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to initialize client")
				return
			}

			for j := 0; j < targetOrders/numWorkers; j++ {
				symbol := symbols[rand.Intn(len(symbols))]
				orderType := orderTypes[rand.Intn(len(orderTypes))]
				quantity := int64(rand.Intn(100) + 1)

				holdings, err := client.placeOrder(symbol, quantity, orderType)
				summary.mu.Lock()
				summary.TotalOrders++
				if err != nil {
					summary.FailedOrders++
					summary.mu.Unlock()
					log.Error().Err(err).
						Int("worker_id", workerID).
						Str("symbol", symbol).
						Msg("Failed to place order")
					continue
				}
				summary.Symbols[symbol]++
				summary.Types[orderType]++
				for _, h := range holdings {
					if h.Symbol == symbol {
						summary.TotalValue += h.Value
					}
				}
				summary.mu.Unlock()

				log.Info().
					Int("worker_id", workerID).
					Str("symbol", symbol).
					Str("type", orderType).
					Int64("quantity", quantity).
					Msg("Order placed")

				// Random sleep between orders
				time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
			}

			// Read back holdings and history for this trader
			holdings, err := client.getHoldings()
			if err != nil {
				log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to fetch holdings")
				return
			}
			orderCount, err := client.getOrders()
			if err != nil {
				log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to fetch order history")
				return
			}
			log.Info().
				Int("worker_id", workerID).
				Int("positions", len(holdings)).
				Int("orders", orderCount).
				Msg("Trader finished")
		}(i)
	}

	wg.Wait()

	duration := time.Since(startTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("PORTFOLIO SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Order Statistics
------------------
Total Orders:     %d
Failed Orders:    %d
Traded Value:     $%.2f
Duration:         %v

Symbol Distribution
--------------------
`, summary.TotalOrders, summary.FailedOrders, summary.TotalValue, duration.Round(time.Millisecond))

	maxSymbolCount := 0
	for _, count := range summary.Symbols {
		if count > maxSymbolCount {
			maxSymbolCount = count
		}
	}
	for symbol, count := range summary.Symbols {
		barLength := int(float64(count) / float64(maxSymbolCount) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-6s: %s (%d)\n", symbol, bar, count)
	}

	fmt.Println("\nOrder Type Distribution")
	fmt.Println("------------------")
	for orderType, count := range summary.Types {
		barLength := int(float64(count) / float64(summary.TotalOrders) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-4s: %s (%d)\n", orderType, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	printPerformanceStats(stats)
}

// startQuoteProvider serves a mock Yahoo-style quote endpoint with
// randomized prices around fixed bases
func startQuoteProvider() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.GET("/v7/finance/quote", func(c *gin.Context) {
		requested := strings.Split(c.Query("symbols"), ",")
		results := make([]gin.H, 0, len(requested))
		for _, symbol := range requested {
			base, ok := basePrices[symbol]
			if !ok {
				continue
			}
			// Random variance of +-2% around the base price
			price := base * (1 + (rand.Float64()*0.04 - 0.02))
			results = append(results, gin.H{
				"symbol":                     symbol,
				"longName":                   symbol + " Inc.",
				"regularMarketPrice":         price,
				"regularMarketChangePercent": rand.Float64()*4 - 2,
				"fiftyTwoWeekHigh":           base * 1.3,
				"fiftyTwoWeekLow":            base * 0.7,
				"priceToBook":                rand.Float64()*10 + 1,
				"trailingPE":                 rand.Float64()*30 + 5,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"quoteResponse": gin.H{"result": results},
		})
	})

	return router.Run(providerAddress)
}

// startServer initializes and starts the portfolio API server
func startServer() error {
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	quoteClient := quotes.NewClient(config.QuotesConfig{
		BaseURL: "http://localhost" + providerAddress,
		Timeout: 5 * time.Second,
	})

	authService := auth.NewService(jwtSecret, db)
	orderService := orders.NewService(ledger.NewDatabase(db), quoteClient, authService, true)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	authHandlers := auth.NewGinHandlers(authService)
	orderHandlers := orders.NewGinHandlers(orderService)

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/signup", authHandlers.SignupHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(jwtSecret))
		{
			protected.POST("/orders", orderHandlers.PlaceOrderHandler())
			protected.GET("/orders", orderHandlers.GetOrdersHandler())
			protected.GET("/holdings", orderHandlers.GetHoldingsHandler())
		}
	}

	return router.Run(":8080")
}
