package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/simfinity/connect-api/internal/auth"
	"github.com/simfinity/connect-api/internal/catalog"
	"github.com/simfinity/connect-api/internal/database"
	"github.com/simfinity/connect-api/internal/gateway"
	"github.com/simfinity/connect-api/internal/margin"
	"github.com/simfinity/connect-api/internal/notify"
	"github.com/simfinity/connect-api/internal/ordering"
	"github.com/simfinity/connect-api/internal/selector"
	"github.com/simfinity/connect-api/internal/types"
	"github.com/simfinity/connect-api/pkg/middleware"
)

const (
	minOrders     = 15
	maxOrders     = 100
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
)

var sources = []string{types.OrderSourceWebsite, types.OrderSourceAPI, types.OrderSourceMobile}

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

// simulationClient handles HTTP communication with the fulfillment API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 15 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":  {name: "Authentication"},
			"place": {name: "Place Order"},
			"get":   {name: "Get Order"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// placeOrder submits a purchase order to the API and returns its status view
func (sc *simulationClient) placeOrder(req *types.OrderRequest) (*types.OrderStatusResponse, error) {
	start := time.Now()
	defer func() {
		sc.stats["place"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/orders", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := sc.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Place order response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("place order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                      `json:"success"`
		Data    types.OrderStatusResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Data.OrderID == "" {
		return nil, fmt.Errorf("no order ID in response: %s", string(respBody))
	}

	return &result.Data, nil
}

// getOrder retrieves the stored state of a purchase order
func (sc *simulationClient) getOrder(orderID string) (*types.OrderStatusResponse, error) {
	start := time.Now()
	defer func() {
		sc.stats["get"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest(
		"GET",
		fmt.Sprintf("%s/api/v1/orders/%s", sc.baseURL, orderID),
		nil,
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                      `json:"success"`
		Data    types.OrderStatusResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the fulfillment simulation
// It starts a local API server and simulates concurrent purchase clients
func main() {
	packageIDs := make(chan []string, 1)

	// Start the server in a goroutine
	go func() {
		if err := startServer(packageIDs); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	targets := <-packageIDs
	if len(targets) == 0 {
		log.Fatal().Msg("No packages seeded, nothing to order")
	}

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	resultsChan := make(chan *types.OrderStatusResponse, targetOrders)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			placeOrdersHTTP(workerID, targetOrders/numWorkers, targets, simClient, resultsChan)
		}(i)
	}

	wg.Wait()
	close(resultsChan)

	stats := struct {
		TotalOrders     int
		Fulfilled       int
		FailoverUsed    int
		Failed          int
		StartTime       time.Time
		FinalProviders  map[string]int
		ErrorCodes      map[string]int
		AttemptsOverall int
	}{
		StartTime:      time.Now(),
		FinalProviders: make(map[string]int),
		ErrorCodes:     make(map[string]int),
	}

	for result := range resultsChan {
		stats.TotalOrders++
		stats.AttemptsOverall += len(result.Attempts)

		if result.Status == "FULFILLED" {
			stats.Fulfilled++
			stats.FinalProviders[result.FinalProviderID]++
			if result.FailoverUsed {
				stats.FailoverUsed++
			}

			// Round-trip a read to exercise the status endpoint
			if stored, err := simClient.getOrder(result.OrderID); err == nil && stored != nil {
				log.Debug().
					Str("order_id", stored.OrderID).
					Str("status", stored.Status).
					Msg("Order state verified")
			}
			continue
		}

		stats.Failed++
		stats.ErrorCodes[result.ErrorCode]++
	}

	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("FULFILLMENT SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Order Statistics
----------------
Total Orders:     %d
Fulfilled:        %d
Via Failover:     %d
Failed:           %d
Total Attempts:   %d
Duration:         %v

Final Provider Distribution
---------------------------
`, stats.TotalOrders, stats.Fulfilled, stats.FailoverUsed, stats.Failed,
		stats.AttemptsOverall, duration.Round(time.Millisecond))

	maxProviderCount := 0
	for _, count := range stats.FinalProviders {
		if count > maxProviderCount {
			maxProviderCount = count
		}
	}
	for provider, count := range stats.FinalProviders {
		barLength := int(float64(count) / float64(maxProviderCount) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-40s: %s (%d)\n", provider, bar, count)
	}

	if len(stats.ErrorCodes) > 0 {
		fmt.Println("\nFailure Codes")
		fmt.Println("-------------")
		for code, count := range stats.ErrorCodes {
			fmt.Printf("%-22s: %d\n", code, count)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	successRate := float64(stats.Fulfilled) / float64(stats.TotalOrders) * 100
	log.Info().
		Float64("success_rate", successRate).
		Int("total_orders", stats.TotalOrders).
		Int("failover_used", stats.FailoverUsed).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// placeOrdersHTTP generates and submits random purchase orders to the API
// Runs as a worker goroutine, sending terminal order states to resultsChan
func placeOrdersHTTP(workerID, numOrders int, packageIDs []string, simClient *simulationClient, resultsChan chan<- *types.OrderStatusResponse) {
	for i := 0; i < numOrders; i++ {
		req := &types.OrderRequest{
			UnifiedPackageID: packageIDs[rand.Intn(len(packageIDs))],
			Quantity:         rand.Intn(3) + 1,
			CustomerEmail:    fmt.Sprintf("customer%d-%d@example.com", workerID, i),
			CustomerName:     fmt.Sprintf("Customer %d-%d", workerID, i),
			TransactionID:    uuid.New().String(),
			Source:           sources[rand.Intn(len(sources))],
		}

		result, err := simClient.placeOrder(req)
		if err != nil {
			log.Error().Err(err).
				Str("worker_id", fmt.Sprintf("%d", workerID)).
				Str("package_id", req.UnifiedPackageID).
				Msg("Failed to place order")
			simClient.stats["place"].failures++
			continue
		}

		resultsChan <- result
		log.Info().
			Str("worker_id", fmt.Sprintf("%d", workerID)).
			Str("order_id", result.OrderID).
			Str("status", result.Status).
			Bool("failover_used", result.FailoverUsed).
			Int("attempts", len(result.Attempts)).
			Msg("Order placed")

		// Random sleep between orders
		time.Sleep(time.Duration(rand.Intn(300)) * time.Millisecond)
	}
}

// startServer initializes and starts the fulfillment API server
// Seeds the demo catalog and reports the orderable package ids
func startServer(packageIDs chan<- []string) error {
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := catalog.SeedDemoCatalog(db); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	packages, err := catalog.ListPackages(db)
	if err != nil {
		return fmt.Errorf("failed to list packages: %w", err)
	}
	ids := make([]string, len(packages))
	for i, pkg := range packages {
		ids[i] = pkg.PackageID
	}
	packageIDs <- ids

	// Initialize services
	authService := auth.NewService("connect-secret-key")
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	marginService := margin.NewService(db)
	selectorService := selector.NewService(db, marginService)
	resolver := catalog.NewResolver(db)

	registry := gateway.NewRegistry()
	gateway.RegisterSimulatedProviders(registry)

	notifyService := notify.NewService(db, nil)

	engine := ordering.NewEngine(resolver, selectorService, marginService, registry,
		notifyService, ordering.NewDatabase(db))
	orderingService := ordering.NewService(db, engine)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	orderingHandlers := ordering.NewGinHandlers(orderingService)
	selectorHandlers := selector.NewGinHandlers(selectorService)
	marginHandlers := margin.NewGinHandlers(marginService)
	notifyHandlers := notify.NewGinHandlers(notifyService)

	// Setup routes
	setupRoutes(router, authHandlers, orderingHandlers, selectorHandlers, marginHandlers, notifyHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality; internal routes reuse the public JWT here
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	orderingHandlers *ordering.GinHandlers,
	selectorHandlers *selector.GinHandlers,
	marginHandlers *margin.GinHandlers,
	notifyHandlers *notify.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth())
		{
			orders.POST("", orderingHandlers.PlaceOrderHandler())
			orders.GET("/:order_id", orderingHandlers.GetOrderStatusHandler())
		}

		// Internal routes
		internal := v1.Group("/internal")
		{
			internal.GET("/providers", selectorHandlers.EnabledProvidersHandler())
			internal.POST("/failover/cache/clear", marginHandlers.ClearCacheHandler())
			internal.GET("/notifications", notifyHandlers.RecentNotificationsHandler())
		}
	}
}
