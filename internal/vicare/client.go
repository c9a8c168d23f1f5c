package vicare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the ViCare IoT API root.
const DefaultBaseURL = "https://api.viessmann.com/iot/v1"

const (
	defaultHTTPTimeout = 30 * time.Second

	// defaultRateLimitBackoff applies when a 429 carries no reset time.
	defaultRateLimitBackoff = time.Minute

	maxResponseBytes = 8 << 20

	errorTypeRateLimit = "RATE_LIMIT_EXCEEDED"
)

// Options configures a Client.
type Options struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient must attach credentials, normally oauth2.NewClient.
	HTTPClient *http.Client

	// CacheDuration is how long a device's feature list is reused.
	// Zero disables caching.
	CacheDuration time.Duration

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Stats are cumulative client counters.
type Stats struct {
	Requests    uint64
	CacheHits   uint64
	RateLimited uint64
	Commands    uint64
}

type cachedFeatures struct {
	set     FeatureSet
	fetched time.Time
}

// Client talks to the ViCare feature API.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Concurrent fetches of the
//     same device share a single request.
type Client struct {
	baseURL       string
	http          *http.Client
	cacheDuration time.Duration
	now           func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cachedFeatures
	// generation counts invalidations per device; a fetch that overlaps
	// one does not populate the cache.
	generation   map[string]uint64
	blockedUntil time.Time

	requests    atomic.Uint64
	cacheHits   atomic.Uint64
	rateLimited atomic.Uint64
	commands    atomic.Uint64
}

// NewClient creates an API client.
func NewClient(opts Options) (*Client, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("vicare: invalid base url %q: %w", base, err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Client{
		baseURL:       strings.TrimRight(base, "/"),
		http:          httpClient,
		cacheDuration: opts.CacheDuration,
		now:           now,
		cache:         make(map[string]cachedFeatures),
		generation:    make(map[string]uint64),
	}, nil
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Requests:    c.requests.Load(),
		CacheHits:   c.cacheHits.Load(),
		RateLimited: c.rateLimited.Load(),
		Commands:    c.commands.Load(),
	}
}

// RateLimitedUntil reports the end of the current rate-limit block, or
// the zero time when calls are allowed.
func (c *Client) RateLimitedUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now().Before(c.blockedUntil) {
		return c.blockedUntil
	}
	return time.Time{}
}

// Installations lists installations with their gateways and devices.
func (c *Client) Installations(ctx context.Context) ([]Installation, error) {
	var body struct {
		Data []Installation `json:"data"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/equipment/installations?includeGateways=true", &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// Devices flattens every installation into device handles.
func (c *Client) Devices(ctx context.Context) ([]*Device, error) {
	installations, err := c.Installations(ctx)
	if err != nil {
		return nil, err
	}
	var devices []*Device
	for _, inst := range installations {
		for _, gw := range inst.Gateways {
			for _, info := range gw.Devices {
				devices = append(devices, &Device{
					client:         c,
					InstallationID: strconv.FormatInt(inst.ID, 10),
					GatewaySerial:  gw.Serial,
					ID:             info.ID,
					Model:          info.ModelID,
					Type:           info.DeviceType,
					Roles:          info.Roles,
					Status:         info.Status,
				})
			}
		}
	}
	return devices, nil
}

// Features returns a device's feature list, from cache when fresh.
func (c *Client) Features(ctx context.Context, d *Device) (FeatureSet, error) {
	key := d.featuresPath()

	c.mu.Lock()
	entry, ok := c.cache[key]
	fresh := ok && c.cacheDuration > 0 && c.now().Sub(entry.fetched) < c.cacheDuration
	c.mu.Unlock()
	if fresh {
		c.cacheHits.Add(1)
		return entry.set, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		gen := c.generation[key]
		c.mu.Unlock()

		var list featureList
		if err := c.getJSON(ctx, c.baseURL+key, &list); err != nil {
			return nil, err
		}
		set := newFeatureSet(list.Data)
		c.mu.Lock()
		if c.generation[key] == gen {
			c.cache[key] = cachedFeatures{set: set, fetched: c.now()}
		}
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(FeatureSet), nil
}

// Invalidate drops a device's cached features. A fetch already in flight
// still answers its callers but is not cached, and later callers start a
// new fetch instead of joining it.
func (c *Client) Invalidate(d *Device) {
	key := d.featuresPath()
	c.mu.Lock()
	delete(c.cache, key)
	c.generation[key]++
	c.mu.Unlock()
	c.group.Forget(key)
}

// Execute posts a command with its parameters and drops the device cache
// so the next read reflects the change.
func (c *Client) Execute(ctx context.Context, d *Device, cmd Command, params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("vicare: encode command params: %w", err)
	}
	c.commands.Add(1)
	defer c.Invalidate(d)
	return c.do(ctx, http.MethodPost, cmd.URI, payload, nil, true)
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	return c.do(ctx, http.MethodGet, rawURL, nil, out, false)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, out any, command bool) error {
	if until := c.RateLimitedUntil(); !until.IsZero() {
		return &APIError{Kind: ErrRateLimit, ErrorType: errorTypeRateLimit, Message: "request suppressed", LimitReset: until}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("vicare: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.requests.Add(1)
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(err)
	}

	if apiErr := c.checkResponse(resp, data, command); apiErr != nil {
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Kind: ErrInvalidData, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// errorBody is the ViCare error envelope.
type errorBody struct {
	StatusCode      int    `json:"statusCode"`
	ErrorType       string `json:"errorType"`
	Message         string `json:"message"`
	ExtendedPayload struct {
		LimitReset int64  `json:"limitReset"`
		Reason     string `json:"reason"`
	} `json:"extendedPayload"`
}

func (c *Client) checkResponse(resp *http.Response, data []byte, command bool) error {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)

	rateLimited := resp.StatusCode == http.StatusTooManyRequests || eb.ErrorType == errorTypeRateLimit
	if !rateLimited && resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiErr := &APIError{
		Kind:       kindForStatus(resp.StatusCode, command),
		StatusCode: resp.StatusCode,
		ErrorType:  eb.ErrorType,
		Message:    eb.Message,
	}
	if apiErr.Message == "" && eb.ExtendedPayload.Reason != "" {
		apiErr.Message = eb.ExtendedPayload.Reason
	}
	if rateLimited {
		apiErr.Kind = ErrRateLimit
		apiErr.LimitReset = c.limitReset(resp, eb)
		c.rateLimited.Add(1)
		c.mu.Lock()
		if apiErr.LimitReset.After(c.blockedUntil) {
			c.blockedUntil = apiErr.LimitReset
		}
		c.mu.Unlock()
	}
	return apiErr
}

func (c *Client) limitReset(resp *http.Response, eb errorBody) time.Time {
	if eb.ExtendedPayload.LimitReset > 0 {
		return time.UnixMilli(eb.ExtendedPayload.LimitReset)
	}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return c.now().Add(time.Duration(secs) * time.Second)
		}
	}
	return c.now().Add(defaultRateLimitBackoff)
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &APIError{Kind: ErrTimeout, Err: err}
	}
	// Token refresh failures are already classified.
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Kind: ErrConnection, Err: err}
}
