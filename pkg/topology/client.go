package topology

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/incidentlab/topograph/pkg/cache"
	"github.com/incidentlab/topograph/pkg/errors"
	"github.com/incidentlab/topograph/pkg/httputil"
	"github.com/incidentlab/topograph/pkg/incident"
	"github.com/incidentlab/topograph/pkg/observability"
)

// RequestIDHeader carries a fresh id on every outgoing request so calls can
// be correlated with the service logs.
const RequestIDHeader = "X-Request-ID"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 64 << 20

// Client fetches partial topologies from the topology service. It
// implements [incident.TopologyFetcher].
//
// Responses are cached by (incident, entity, snapshot), retried on transient
// failures, and concurrent identical requests share a single round trip.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    cache.Cache
	keyer    cache.Keyer
	ttl      time.Duration
	headers  map[string]string
	attempts int
	delay    time.Duration
	refresh  bool
	group    singleflight.Group
}

var _ incident.TopologyFetcher = (*Client)(nil)

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache enables response caching. A nil keyer uses [cache.DefaultKeyer].
func WithCache(cc cache.Cache, keyer cache.Keyer) Option {
	return func(c *Client) {
		if cc != nil {
			c.cache = cc
		}
		if keyer != nil {
			c.keyer = keyer
		}
	}
}

// WithTTL sets how long cached responses are reused.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithHeaders adds headers to every request, e.g. authentication.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) { c.headers = headers }
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithRefresh bypasses cached responses. Fresh responses are still written
// back to the cache.
func WithRefresh(refresh bool) Option {
	return func(c *Client) { c.refresh = refresh }
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if err := errors.ValidateURL(baseURL); err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httputil.NewHTTPClient(),
		cache:    cache.NewNullCache(),
		keyer:    cache.NewDefaultKeyer(),
		ttl:      cache.TopologyTTL,
		attempts: 3,
		delay:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// topologyRequest is the body of a partial topology query.
type topologyRequest struct {
	EntityID   string `json:"entity_id"`
	SnapshotID string `json:"snapshot_id"`
}

// envelope is the common response wrapper of the service.
type envelope struct {
	Result  bool            `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// topologyData is the payload of a partial topology response. The graph is
// delivered under "topo" rather than under the snapshot content key.
type topologyData struct {
	Categories map[string]incident.CategoryInfo `json:"product_hierarchy_category"`
	Ranks      map[string]incident.RankInfo     `json:"product_hierarchy_rank"`
	Topo       incident.GraphContent            `json:"topo"`
}

// FetchPartialTopology returns the partial topology around entityID as
// snapshot content. Alerts and business id are left empty for the caller to
// fill from the snapshot the entity belongs to.
func (c *Client) FetchPartialTopology(ctx context.Context, incidentID int64, entityID, snapshotID string) (*incident.Content, error) {
	if err := errors.ValidateEntityID(entityID); err != nil {
		return nil, err
	}
	if err := errors.ValidateSnapshotID(snapshotID); err != nil {
		return nil, err
	}

	key := c.keyer.TopologyKey(incidentID, entityID, snapshotID)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.cached(ctx, key, func() ([]byte, error) {
			return c.post(ctx, topologyPath(incidentID), topologyRequest{EntityID: entityID, SnapshotID: snapshotID})
		})
	})
	if err != nil {
		return nil, err
	}

	var data topologyData
	if err := json.Unmarshal(v.([]byte), &data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode topology of %q", entityID)
	}
	return &incident.Content{
		Categories: data.Categories,
		Ranks:      data.Ranks,
		Graph:      data.Topo,
	}, nil
}

func topologyPath(incidentID int64) string {
	return "/api/v1/incidents/" + strconv.FormatInt(incidentID, 10) + "/topology"
}

// cached returns the cached payload for key, or calls fetch with retries and
// stores the result.
func (c *Client) cached(ctx context.Context, key string, fetch func() ([]byte, error)) ([]byte, error) {
	hooks := observability.Cache()
	if !c.refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			hooks.OnCacheHit(ctx, "topology")
			return data, nil
		}
		hooks.OnCacheMiss(ctx, "topology")
	}

	var data []byte
	err := httputil.Retry(ctx, c.attempts, c.delay, func() error {
		var err error
		data, err = fetch()
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err == nil {
		hooks.OnCacheSet(ctx, "topology", len(data))
	}
	return data, nil
}

// post sends body as JSON and returns the unwrapped data of the response.
func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host := req.URL.Host
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "topology request cancelled")
		}
		return nil, httputil.TransportError(err)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, httputil.TransportError(err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode response of %s", path)
	}
	if !env.Result {
		return nil, errors.New(errors.ErrCodeNetwork, "topology service rejected request: %s", env.Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "empty topology in response of %s", path)
	}
	return env.Data, nil
}

// String describes the client for log lines.
func (c *Client) String() string {
	return fmt.Sprintf("topology.Client(%s)", c.baseURL)
}
