package rollout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"modelswap/pkg/types"
)

// ReplicaClient is the replica-facing status/update interface.
type ReplicaClient interface {
	// Name identifies the replica (its base URL for HTTP clients).
	Name() string
	RequestUpdate(ctx context.Context, artifactID string) (types.UpdateModelResponse, error)
	Status(ctx context.Context) (types.StatusResponse, error)
	Generate(ctx context.Context, req types.GenerateRequest) (GenerateResult, error)
	Ready(ctx context.Context) (bool, error)
}

// GenerateResult is a served output with the version headers that came with it.
type GenerateResult struct {
	Output     string
	Version    int64
	ArtifactID string
}

// ClientOptions tunes HTTPClient.
type ClientOptions struct {
	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration
	// AdminToken is sent as a bearer token on /update-model.
	AdminToken string
	// StatusQPS limits /status calls per second. Zero disables limiting.
	StatusQPS float64
	// HTTPClient overrides the transport.
	HTTPClient *http.Client
}

const defaultRequestTimeout = 30 * time.Second

// HTTPClient talks to one replica over its JSON HTTP API.
type HTTPClient struct {
	base    string
	http    *http.Client
	timeout time.Duration
	token   string
	limiter *rate.Limiter
}

func NewHTTPClient(baseURL string, opts ClientOptions) *HTTPClient {
	c := &HTTPClient{
		base:    strings.TrimRight(baseURL, "/"),
		http:    opts.HTTPClient,
		timeout: opts.Timeout,
		token:   opts.AdminToken,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultRequestTimeout
	}
	if opts.StatusQPS > 0 {
		burst := int(opts.StatusQPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.StatusQPS), burst)
	}
	return c
}

// NewHTTPClients builds one client per base URL.
func NewHTTPClients(baseURLs []string, opts ClientOptions) []ReplicaClient {
	out := make([]ReplicaClient, 0, len(baseURLs))
	for _, u := range baseURLs {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, NewHTTPClient(u, opts))
		}
	}
	return out
}

func (c *HTTPClient) Name() string { return c.base }

// do sends one request. Transport failures are wrapped as transportError,
// 409 as rejectedError, any other non-2xx as statusError.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any, admin bool) (http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError{replica: c.base, err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, transportError{replica: c.base, err: err}
	}
	if resp.StatusCode == http.StatusConflict {
		return resp.Header, rejectedError{replica: c.base, reason: errorMessage(raw)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.Header, statusError{replica: c.base, code: resp.StatusCode, body: errorMessage(raw)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.Header, fmt.Errorf("%s: decode %s: %w", c.base, path, err)
		}
	}
	return resp.Header, nil
}

func errorMessage(raw []byte) string {
	var er types.ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(raw))
}

func (c *HTTPClient) RequestUpdate(ctx context.Context, artifactID string) (types.UpdateModelResponse, error) {
	var out types.UpdateModelResponse
	_, err := c.do(ctx, http.MethodPost, "/update-model", types.UpdateModelRequest{ArtifactID: artifactID}, &out, true)
	if err != nil {
		return out, err
	}
	if !out.OK {
		return out, rejectedError{replica: c.base, reason: out.Message}
	}
	return out, nil
}

func (c *HTTPClient) Status(ctx context.Context) (types.StatusResponse, error) {
	var out types.StatusResponse
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, transportError{replica: c.base, err: err}
		}
	}
	_, err := c.do(ctx, http.MethodGet, "/status", nil, &out, false)
	return out, err
}

func (c *HTTPClient) Generate(ctx context.Context, req types.GenerateRequest) (GenerateResult, error) {
	var out types.GenerateResponse
	h, err := c.do(ctx, http.MethodPost, "/generate", req, &out, false)
	if err != nil {
		return GenerateResult{}, err
	}
	v, _ := strconv.ParseInt(h.Get(types.HeaderModelVersion), 10, 64)
	return GenerateResult{Output: out.Output, Version: v, ArtifactID: h.Get(types.HeaderModelRepoID)}, nil
}

// Ready reports the replica's readiness. A 503 is not an error.
func (c *HTTPClient) Ready(ctx context.Context) (bool, error) {
	var out types.ReadyResponse
	_, err := c.do(ctx, http.MethodGet, "/ready", nil, &out, false)
	if StatusCode(err) == http.StatusServiceUnavailable {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return out.Ready, nil
}

var _ ReplicaClient = (*HTTPClient)(nil)

// errNoReplicas is returned by fleet operations with nothing to talk to.
var errNoReplicas = errors.New("no replicas configured")
