// Package kis fetches daily OHLC rows from the Korea Investment & Securities open API.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/marketdata"
	"trade-emulator/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://openapi.koreainvestment.com:9443"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultRateLimit   = 15 // requests per second
)

const (
	tokenPath      = "/oauth2/tokenP"
	dailyPricePath = "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice"
	dailyPriceTrID = "FHKST03010100"
)

// Errors returned by HTTPClient.
var (
	ErrMalformedResponse = errors.New("malformed market data response")
	ErrMissingCredential = errors.New("app key and app secret are required")
)

// APIError is a non-success result code reported by the API. It is not retried.
type APIError struct {
	Code    string
	MsgCode string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kis error %s (%s): %s", e.Code, e.MsgCode, e.Message)
}

// HTTPClient implements marketdata.Source over the KIS REST API.
type HTTPClient struct {
	baseURL     string
	appKey      string
	appSecret   string
	client      *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	adjusted    bool

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	now         func() time.Time
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL overrides the API host (e.g. the paper-trading domain).
func WithBaseURL(u string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURL = u
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *HTTPClient) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithAdjustedPrices requests prices adjusted for splits and dividends.
func WithAdjustedPrices(adjusted bool) ClientOption {
	return func(c *HTTPClient) {
		c.adjusted = adjusted
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new KIS API client.
func NewHTTPClient(appKey, appSecret string, opts ...ClientOption) (*HTTPClient, error) {
	if appKey == "" || appSecret == "" {
		return nil, ErrMissingCredential
	}
	c := &HTTPClient{
		baseURL:     DefaultBaseURL,
		appKey:      appKey,
		appSecret:   appSecret,
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// tokenRequest is the body of the access token request.
type tokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
}

// tokenResponse is the access token response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// dailyPriceResponse is the raw response of the daily item chart price inquiry.
type dailyPriceResponse struct {
	RtCd    string           `json:"rt_cd"`
	MsgCd   string           `json:"msg_cd"`
	Msg1    string           `json:"msg1"`
	Output2 *[]dailyPriceRow `json:"output2"`
}

// dailyPriceRow carries prices as decimal strings.
type dailyPriceRow struct {
	Date   string `json:"stck_bsop_date"`
	Open   string `json:"stck_oprc"`
	High   string `json:"stck_hgpr"`
	Low    string `json:"stck_lwpr"`
	Close  string `json:"stck_clpr"`
	Volume string `json:"acml_vol"`
}

// token returns a cached access token, requesting a new one when expired.
func (c *HTTPClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	body, err := json.Marshal(tokenRequest{
		GrantType: "client_credentials",
		AppKey:    c.appKey,
		AppSecret: c.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	respBody, err := c.do(ctx, "token", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrMalformedResponse)
	}

	c.accessToken = tok.AccessToken
	// refresh a minute early
	c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

// do sends a request built by newReq with rate limiting, retries and exponential backoff.
// Transport errors, 429 and 5xx responses are retried; other statuses are returned.
func (c *HTTPClient) do(ctx context.Context, endpoint string, newReq func() (*http.Request, error)) (body []byte, err error) {
	start := time.Now()
	defer func() {
		observability.RecordAPIRequest(endpoint, time.Since(start).Seconds(), err)
	}()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Fetch retrieves rows within [start, endExclusive). The API caps a single response at
// 100 rows, so callers should keep windows at or below 100 days.
func (c *HTTPClient) Fetch(ctx context.Context, symbol string, interval marketdata.Interval, start, endExclusive time.Time) ([]*domain.DailyPrice, error) {
	if !endExclusive.After(start) {
		return nil, nil
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	adjusted := "1"
	if c.adjusted {
		adjusted = "0"
	}
	query := url.Values{}
	query.Set("FID_COND_MRKT_DIV_CODE", "J")
	query.Set("FID_INPUT_ISCD", symbol)
	query.Set("FID_INPUT_DATE_1", domain.FormatDate(start))
	query.Set("FID_INPUT_DATE_2", domain.FormatDate(endExclusive.AddDate(0, 0, -1)))
	query.Set("FID_PERIOD_DIV_CODE", string(interval))
	query.Set("FID_ORG_ADJ_PRC", adjusted)

	respBody, err := c.do(ctx, "daily_price", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+dailyPricePath+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("authorization", "Bearer "+tok)
		req.Header.Set("appkey", c.appKey)
		req.Header.Set("appsecret", c.appSecret)
		req.Header.Set("tr_id", dailyPriceTrID)
		req.Header.Set("custtype", "P")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch daily prices %s %s-%s: %w",
			symbol, domain.FormatDate(start), domain.FormatDate(endExclusive), err)
	}

	var resp dailyPriceResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal daily prices: %w", err)
	}
	if resp.RtCd != "0" {
		return nil, &APIError{Code: resp.RtCd, MsgCode: resp.MsgCd, Message: resp.Msg1}
	}
	if resp.Output2 == nil {
		return nil, fmt.Errorf("%w: output2 missing for %s %s-%s",
			ErrMalformedResponse, symbol, domain.FormatDate(start), domain.FormatDate(endExclusive))
	}

	return parseRows(symbol, *resp.Output2)
}

// parseRows converts raw rows, skipping the empty placeholders returned for empty ranges.
func parseRows(symbol string, raw []dailyPriceRow) ([]*domain.DailyPrice, error) {
	rows := make([]*domain.DailyPrice, 0, len(raw))
	for _, r := range raw {
		if r.Date == "" {
			continue
		}
		p, err := r.toDomain(symbol)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows, nil
}

func (r dailyPriceRow) toDomain(symbol string) (*domain.DailyPrice, error) {
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return nil, err
	}
	p := &domain.DailyPrice{Symbol: symbol, Date: date}
	fields := []struct {
		name string
		raw  string
		dst  *int64
	}{
		{"stck_oprc", r.Open, &p.Open},
		{"stck_hgpr", r.High, &p.High},
		{"stck_lwpr", r.Low, &p.Low},
		{"stck_clpr", r.Close, &p.Close},
		{"acml_vol", r.Volume, &p.Volume},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := parseInt(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", f.name, r.Date, err)
		}
		*f.dst = v
	}
	return p, nil
}

var _ marketdata.Source = (*HTTPClient)(nil)
