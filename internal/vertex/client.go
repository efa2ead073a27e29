// Package vertex is a small REST client for the Vertex AI services auditnest
// uses: text embeddings, Vector Search, Cloud Storage objects, and the
// Discovery Engine ranking API.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tildaslashalef/auditnest/internal/loggy"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ErrMissingProject is returned when no project is configured
var ErrMissingProject = errors.New("vertex: project is required")

// Config configures the client
type Config struct {
	Project        string
	Location       string
	EmbeddingModel string
	BaseURL        string // empty uses https://<location>-aiplatform.googleapis.com
	StorageURL     string
	RankingURL     string
	Timeout        time.Duration
	MaxRetries     int

	RequestsPerMinute int
	BurstLimit        int
}

// Option customises a Client
type Option func(*Client)

// WithTokenSource replaces Application Default Credentials
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client talks to Vertex AI over HTTPS
type Client struct {
	cfg        Config
	baseURL    string
	basePinned bool
	httpClient *http.Client
	tokens     oauth2.TokenSource
	limiter    *rate.Limiter
	logger     *loggy.Logger
	newBackOff func() backoff.BackOff
}

// NewClient creates a client. Without WithTokenSource it resolves
// Application Default Credentials, which fails when none are configured.
func NewClient(ctx context.Context, cfg Config, logger *loggy.Logger, opts ...Option) (*Client, error) {
	if cfg.Project == "" {
		return nil, ErrMissingProject
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-005"
	}
	if cfg.StorageURL == "" {
		cfg.StorageURL = "https://storage.googleapis.com"
	}
	if cfg.RankingURL == "" {
		cfg.RankingURL = "https://discoveryengine.googleapis.com"
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		basePinned: cfg.BaseURL != "",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    newLimiter(cfg.RequestsPerMinute, cfg.BurstLimit),
		logger:     logger,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	if c.baseURL == "" {
		c.baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Location)
	}
	c.cfg.StorageURL = strings.TrimSuffix(cfg.StorageURL, "/")
	c.cfg.RankingURL = strings.TrimSuffix(cfg.RankingURL, "/")

	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil {
		ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("finding default credentials: %w", err)
		}
		c.tokens = ts
	}

	return c, nil
}

// newLimiter converts requests per minute into a token bucket
func newLimiter(rpm, burst int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, max(burst, 1))
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), max(burst, 1))
}

// Project returns the configured project ID
func (c *Client) Project() string { return c.cfg.Project }

// Location returns the configured region
func (c *Client) Location() string { return c.cfg.Location }

func (c *Client) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", c.cfg.Project, c.cfg.Location)
}

// resourceName expands a bare ID into a full resource name under collection
func (c *Client) resourceName(collection, nameOrID string) string {
	if strings.HasPrefix(nameOrID, "projects/") {
		return nameOrID
	}
	return fmt.Sprintf("%s/%s/%s", c.parent(), collection, nameOrID)
}

// Embed returns one vector per text, in input order
func (c *Client) Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embedRequest{Instances: make([]embedInstance, len(texts))}
	for i, t := range texts {
		req.Instances[i] = embedInstance{Content: t, TaskType: task}
	}

	endpoint := fmt.Sprintf("%s/v1/%s/publishers/google/models/%s:predict", c.baseURL, c.parent(), c.cfg.EmbeddingModel)
	var resp embedResponse
	if err := c.do(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Predictions) != len(texts) {
		return nil, fmt.Errorf("embedding: expected %d predictions, got %d", len(texts), len(resp.Predictions))
	}

	vectors := make([][]float32, len(resp.Predictions))
	for i, p := range resp.Predictions {
		vectors[i] = p.Embeddings.Values
	}
	return vectors, nil
}

// EmbedQuery embeds a search query
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{query}, TaskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds texts for storage
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.Embed(ctx, texts, TaskRetrievalDocument)
}

// GetIndex fetches an index by ID or full resource name
func (c *Client) GetIndex(ctx context.Context, nameOrID string) (*Index, error) {
	var idx Index
	endpoint := fmt.Sprintf("%s/v1/%s", c.baseURL, c.resourceName("indexes", nameOrID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &idx); err != nil {
		return nil, fmt.Errorf("getting index %s: %w", nameOrID, err)
	}
	return &idx, nil
}

// GetIndexEndpoint fetches an index endpoint by ID or full resource name
func (c *Client) GetIndexEndpoint(ctx context.Context, nameOrID string) (*IndexEndpoint, error) {
	var ep IndexEndpoint
	endpoint := fmt.Sprintf("%s/v1/%s", c.baseURL, c.resourceName("indexEndpoints", nameOrID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &ep); err != nil {
		return nil, fmt.Errorf("getting index endpoint %s: %w", nameOrID, err)
	}
	return &ep, nil
}

// FindNeighbors queries a deployed index for the k nearest datapoints
func (c *Client) FindNeighbors(ctx context.Context, ep *IndexEndpoint, deployedIndexID string, vector []float32, k int) ([]Neighbor, error) {
	host := c.baseURL
	if ep.PublicEndpointDomainName != "" && !c.basePinned {
		host = "https://" + ep.PublicEndpointDomainName
	}

	req := findNeighborsRequest{
		DeployedIndexID: deployedIndexID,
		Queries: []neighborQuery{{
			Datapoint:     Datapoint{DatapointID: "query", FeatureVector: vector},
			NeighborCount: k,
		}},
	}

	var resp findNeighborsResponse
	endpoint := fmt.Sprintf("%s/v1/%s:findNeighbors", host, ep.Name)
	if err := c.do(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("finding neighbors: %w", err)
	}

	var neighbors []Neighbor
	for _, nn := range resp.NearestNeighbors {
		for _, n := range nn.Neighbors {
			neighbors = append(neighbors, Neighbor{ID: n.Datapoint.DatapointID, Distance: n.Distance})
		}
	}
	return neighbors, nil
}

// UpsertDatapoints streams vectors into an index
func (c *Client) UpsertDatapoints(ctx context.Context, index string, points []Datapoint) error {
	endpoint := fmt.Sprintf("%s/v1/%s:upsertDatapoints", c.baseURL, c.resourceName("indexes", index))
	if err := c.do(ctx, http.MethodPost, endpoint, upsertDatapointsRequest{Datapoints: points}, nil); err != nil {
		return fmt.Errorf("upserting %d datapoints: %w", len(points), err)
	}
	return nil
}

// ReadObject downloads a Cloud Storage object
func (c *Client) ReadObject(ctx context.Context, bucket, name string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", c.cfg.StorageURL, url.PathEscape(bucket), url.PathEscape(name))

	var raw []byte
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return nil, fmt.Errorf("reading gs://%s/%s: %w", bucket, name, err)
	}
	return raw, nil
}

// WriteObject uploads a JSON object to Cloud Storage
func (c *Client) WriteObject(ctx context.Context, bucket, name string, data json.RawMessage) error {
	q := url.Values{"uploadType": {"media"}, "name": {name}}
	endpoint := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", c.cfg.StorageURL, url.PathEscape(bucket), q.Encode())
	if err := c.do(ctx, http.MethodPost, endpoint, data, nil); err != nil {
		return fmt.Errorf("writing gs://%s/%s: %w", bucket, name, err)
	}
	return nil
}

// Rank orders records by relevance with the Discovery Engine ranking API
func (c *Client) Rank(ctx context.Context, req RankRequest) (*RankResponse, error) {
	location := req.Location
	if location == "" {
		location = "global"
	}
	rankingConfig := req.RankingConfig
	if rankingConfig == "" {
		rankingConfig = "default_ranking_config"
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/locations/%s/rankingConfigs/%s:rank",
		c.cfg.RankingURL, c.cfg.Project, location, rankingConfig)

	var resp RankResponse
	if err := c.do(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("ranking %d records: %w", len(req.Records), err)
	}
	return &resp, nil
}

// Ping checks that credentials work and the project is reachable
func (c *Client) Ping(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v1/%s/indexes?pageSize=1", c.baseURL, c.parent())
	if err := c.do(ctx, http.MethodGet, endpoint, nil, nil); err != nil {
		return fmt.Errorf("pinging vertex: %w", err)
	}
	return nil
}

// do sends a JSON request with auth, rate limiting and retries.
// 429 and 5xx responses are retried; other API errors are returned at once.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
	}

	var lastErr error
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		tok, err := c.tokens.Token()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("getting access token: %w", err))
		}
		tok.SetAuthHeader(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("sending request: %w", err)
			if ctx.Err() != nil {
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			return lastErr
		}

		c.logger.Debug("Vertex API response", "method", method, "url", req.URL.Path, "status", resp.StatusCode, "bytes", len(data))

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			apiErr := parseAPIError(resp.StatusCode, data)
			lastErr = apiErr
			if apiErr.Retryable() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		switch o := out.(type) {
		case nil:
		case *[]byte:
			*o = data
		default:
			if len(data) == 0 {
				break
			}
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(fmt.Errorf("unmarshalling response: %w", err))
			}
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(max(c.cfg.MaxRetries, 0))), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		if lastErr != nil && !errors.Is(err, lastErr) {
			return errors.Join(err, lastErr)
		}
		return err
	}
	return nil
}

func parseAPIError(status int, body []byte) *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		env.Error.StatusCode = status
		return env.Error
	}
	return &APIError{
		StatusCode: status,
		Status:     http.StatusText(status),
		Message:    strings.TrimSpace(string(body)),
	}
}
