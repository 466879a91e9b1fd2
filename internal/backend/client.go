// Package backend is the HTTP client for the marketplace availability and
// check-in API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"marketbook/internal/booking"
	"marketbook/internal/model"
)

const cachePrefix = "marketbook:"

// Client calls the marketplace API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
	limiter  *rate.Limiter
}

var _ booking.CheckInClient = (*Client)(nil)

// NewClient constructs a client for baseURL. apiKey is sent as x-api-key when set.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// UseRateLimit caps outgoing requests at rps with the given burst.
func (c *Client) UseRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// AvailableSlots fetches the projection of an order's market for [from, to].
func (c *Client) AvailableSlots(ctx context.Context, orderID string, from, to model.Date, resourceID string) (*model.AvailabilityResponse, error) {
	q := url.Values{}
	q.Set("start_date", from.String())
	q.Set("end_date", to.String())
	if resourceID != "" {
		q.Set("resource_id", resourceID)
	}
	endpoint := fmt.Sprintf("%s/api/v1/orders/%s/available-slots?%s", c.baseURL, url.PathEscape(orderID), q.Encode())
	cacheKey := fmt.Sprintf("%savailable-slots:%s:%s:%s:%s", cachePrefix, orderID, from, to, resourceID)

	var resp model.AvailabilityResponse
	if c.readCache(ctx, cacheKey, &resp) {
		return &resp, nil
	}
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, resp)
	return &resp, nil
}

// Market fetches a market with its members.
func (c *Client) Market(ctx context.Context, marketID string) (*model.Market, error) {
	endpoint := fmt.Sprintf("%s/api/v1/markets/%s", c.baseURL, url.PathEscape(marketID))
	cacheKey := fmt.Sprintf("%smarket:%s", cachePrefix, marketID)

	var resp model.Market
	if c.readCache(ctx, cacheKey, &resp) {
		return &resp, nil
	}
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, resp)
	return &resp, nil
}

// CheckIn submits slots for an order. All cached availability is dropped
// after a successful call: other orders may share the order's market.
func (c *Client) CheckIn(ctx context.Context, orderID string, slots []booking.CheckInSlot) (*booking.CheckInResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/orders/%s/check-in", c.baseURL, url.PathEscape(orderID))

	var resp booking.CheckInResult
	if err := c.doPost(ctx, endpoint, booking.CheckInRequest{Slots: slots}, &resp); err != nil {
		return nil, err
	}
	c.invalidate(ctx, cachePrefix+"available-slots:*")
	return &resp, nil
}

// HealthCheck checks that the API answers /healthz.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.doGet(ctx, c.baseURL+"/healthz", nil)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(val, out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (c *Client) invalidate(ctx context.Context, pattern string) {
	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn().Err(err).Str("pattern", pattern).Msg("cache scan failed")
		return
	}
	if len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			c.log.Warn().Err(err).Str("pattern", pattern).Msg("cache invalidate failed")
		}
	}
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("%w: %v", ErrBackend, err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrBackend, req.URL.Path, err)
	}
	return nil
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}
