package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/stockfolio/backend/src/logger"
	"golang.org/x/net/publicsuffix"
)

const quoteUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// --- API Response Structs ---

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// --- Service Implementation ---

type priceServiceImpl struct {
	httpClient    http.Client
	quoteCache    *cache.Cache
	quoteTTL      time.Duration
	baseURL       string
	sessionURL    string
	isInitialized bool
	crumb         string
	mu            sync.Mutex
}

// NewPriceService builds the Yahoo Finance market-data collaborator. The
// session handshake runs in the background so startup never blocks on an
// external host.
func NewPriceService(quoteTTL, timeout time.Duration) PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	client := http.Client{
		Jar:     jar,
		Timeout: timeout,
	}

	s := &priceServiceImpl{
		httpClient: client,
		quoteCache: cache.New(quoteTTL, 2*quoteTTL),
		quoteTTL:   quoteTTL,
		baseURL:    "https://query1.finance.yahoo.com",
		sessionURL: "https://finance.yahoo.com",
	}

	go s.initializeSession()

	return s
}

func (s *priceServiceImpl) initializeSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized && s.crumb != "" {
		return
	}

	logger.L.Info("Initializing market data session and fetching crumb...")

	for _, target := range []string{"https://fc.yahoo.com", s.sessionURL} {
		req, _ := http.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("User-Agent", quoteUserAgent)
		resp, err := s.httpClient.Do(req)
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	req, _ := http.NewRequest(http.MethodGet, s.baseURL+"/v1/test/getcrumb", nil)
	req.Header.Set("User-Agent", quoteUserAgent)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.L.Error("Failed to fetch crumb", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		s.crumb = string(bodyBytes)
		s.isInitialized = true
		logger.L.Info("Market data session initialized")
	} else {
		logger.L.Warn("Failed to fetch crumb", "status", resp.Status)
	}
}

func (s *priceServiceImpl) ensureSession() {
	s.mu.Lock()
	needsInit := !s.isInitialized || s.crumb == ""
	s.mu.Unlock()

	if needsInit {
		s.initializeSession()
	}
}

func (s *priceServiceImpl) currentCrumb() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crumb
}

// GetQuote returns the current market price for a ticker symbol. Quotes are
// cached briefly so a burst of return calculations does not hammer the API;
// a failed fetch surfaces immediately, there is no retry.
func (s *priceServiceImpl) GetQuote(ctx context.Context, symbol string) (float64, error) {
	if symbol == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	if cached, found := s.quoteCache.Get(symbol); found {
		if price, ok := cached.(float64); ok {
			return price, nil
		}
	}

	s.ensureSession()

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", s.baseURL, url.PathEscape(symbol))
	if crumb := s.currentCrumb(); crumb != "" {
		endpoint += "?crumb=" + url.QueryEscape(crumb)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("building quote request: %w", err)
	}
	req.Header.Set("User-Agent", quoteUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("quote request for %s returned status %s", symbol, resp.Status)
	}

	var chartResp yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartResp); err != nil {
		return 0, fmt.Errorf("decoding quote response: %w", err)
	}

	if len(chartResp.Chart.Result) == 0 {
		return 0, fmt.Errorf("no quote data for symbol %s", symbol)
	}
	price := chartResp.Chart.Result[0].Meta.RegularMarketPrice
	if price <= 0 {
		return 0, fmt.Errorf("no market price available for symbol %s", symbol)
	}

	s.quoteCache.Set(symbol, price, s.quoteTTL)
	logger.L.Debug("Fetched quote", "symbol", symbol, "price", price)
	return price, nil
}
