// Package market fetches and reshapes data from a CoinGecko-compatible API.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/stat"

	"github.com/zignal/zignalapi/internal/config"
	"github.com/zignal/zignalapi/internal/telemetry"
)

const (
	tracerName   = "zignalapi/services/market"
	apiKeyHeader = "x-cg-demo-api-key"
	userAgent    = "zignalapi/1.0"

	keyPrices  = "bitcoin:prices"
	keyBitcoin = "bitcoin:summary"
)

// ErrUpstream wraps every failure talking to the market API.
var ErrUpstream = errors.New("market data upstream failure")

// PricePoint is one sample of the price series. T is a unix millisecond
// timestamp rendered as a string.
type PricePoint struct {
	T     string  `json:"t"`
	Close float64 `json:"close"`
}

// Stats summarises a price series.
type Stats struct {
	CurrentPrice float64   `json:"currentPrice"`
	PriceChange  float64   `json:"priceChange"`
	Volatility   float64   `json:"volatility"`
	LastUpdate   time.Time `json:"lastUpdate"`
}

// PriceSeries is the reshaped market chart.
type PriceSeries struct {
	Prices []PricePoint `json:"data"`
	Stats  Stats        `json:"stats"`
}

// CoinSummary is the reshaped coin detail.
type CoinSummary struct {
	Symbol         string    `json:"symbol"`
	CurrentPrice   float64   `json:"currentPrice"`
	PriceChange24h float64   `json:"priceChange24h"`
	Volume24h      float64   `json:"volume24h"`
	MarketCap      float64   `json:"marketCap"`
	High24h        float64   `json:"high24h"`
	Low24h         float64   `json:"low24h"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

type usdValue struct {
	USD float64 `json:"usd"`
}

type coinResponse struct {
	Symbol     string `json:"symbol"`
	MarketData struct {
		CurrentPrice             usdValue `json:"current_price"`
		PriceChangePercentage24h float64  `json:"price_change_percentage_24h"`
		TotalVolume              usdValue `json:"total_volume"`
		MarketCap                usdValue `json:"market_cap"`
		High24h                  usdValue `json:"high_24h"`
		Low24h                   usdValue `json:"low_24h"`
	} `json:"market_data"`
}

// Client calls the market API with a fixed timeout and caches reshaped
// results in process.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *expirable.LRU[string, any]
	now     func() time.Time
}

// NewClient builds a client from the market configuration.
func NewClient(cfg config.MarketConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Client{
		baseURL: cfg.APIURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		cache:   expirable.NewLRU[string, any](16, nil, ttl),
		now:     time.Now,
	}
}

// Prices returns the last day of bitcoin prices in USD with summary stats.
func (c *Client) Prices(ctx context.Context) (*PriceSeries, error) {
	if cached, ok := c.cached(keyPrices); ok {
		return cached.(*PriceSeries), nil
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "market.Prices",
		attribute.String(telemetry.AttrMarketCoin, "bitcoin"),
	)
	defer span.End()

	var chart marketChartResponse
	if err := c.get(ctx, "/coins/bitcoin/market_chart?vs_currency=usd&days=1", &chart); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	series := reshapePrices(chart, c.now())
	c.cache.Add(keyPrices, series)
	return series, nil
}

// Bitcoin returns the current bitcoin market summary.
func (c *Client) Bitcoin(ctx context.Context) (*CoinSummary, error) {
	if cached, ok := c.cached(keyBitcoin); ok {
		return cached.(*CoinSummary), nil
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "market.Bitcoin",
		attribute.String(telemetry.AttrMarketCoin, "bitcoin"),
	)
	defer span.End()

	var coin coinResponse
	path := "/coins/bitcoin?localization=false&tickers=false&market_data=true&community_data=false&developer_data=false"
	if err := c.get(ctx, path, &coin); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	md := coin.MarketData
	summary := &CoinSummary{
		Symbol:         "BTC/USD",
		CurrentPrice:   md.CurrentPrice.USD,
		PriceChange24h: md.PriceChangePercentage24h,
		Volume24h:      md.TotalVolume.USD,
		MarketCap:      md.MarketCap.USD,
		High24h:        md.High24h.USD,
		Low24h:         md.Low24h.USD,
		LastUpdated:    c.now().UTC(),
	}
	c.cache.Add(keyBitcoin, summary)
	return summary, nil
}

func (c *Client) cached(key string) (any, bool) {
	v, ok := c.cache.Get(key)
	telemetry.RecordMarketCache(ok)
	return v, ok
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d from %s", ErrUpstream, resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}

// reshapePrices converts [ms, price] pairs into points and computes stats.
// Volatility is the population coefficient of variation, in percent.
func reshapePrices(chart marketChartResponse, now time.Time) *PriceSeries {
	points := make([]PricePoint, 0, len(chart.Prices))
	values := make([]float64, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		points = append(points, PricePoint{
			T:     strconv.FormatInt(int64(p[0]), 10),
			Close: p[1],
		})
		values = append(values, p[1])
	}

	stats := Stats{LastUpdate: now.UTC()}
	if n := len(values); n > 0 {
		stats.CurrentPrice = values[n-1]
		previous := stats.CurrentPrice
		if n > 1 {
			previous = values[n-2]
		}
		if previous != 0 {
			stats.PriceChange = round2((stats.CurrentPrice - previous) / previous * 100)
		}

		mean, std := stat.PopMeanStdDev(values, nil)
		if mean != 0 {
			stats.Volatility = round2(std / mean * 100)
		}
	}

	return &PriceSeries{Prices: points, Stats: stats}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
