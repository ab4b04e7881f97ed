package medusa

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
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront/pkg/stores"
)

// maxResponseSize limits upstream bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024

// Call describes one finished upstream request.
type Call struct {
	StoreID   string
	Operation string
	Method    string
	Path      string
	Status    int // 0 when the request never got an answer
	Duration  time.Duration
	StartedAt time.Time
}

// Observer is notified after every upstream call.
type Observer interface {
	ObserveCall(ctx context.Context, c Call)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(context.Context, Call) {}

type tokenKey struct{}

// WithCustomerToken makes calls on ctx authenticate as the customer.
func WithCustomerToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// CustomerToken returns the token attached by WithCustomerToken.
func CustomerToken(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey{}).(string)
	return s
}

// Client talks to one store's Medusa Store API.
type Client struct {
	baseURL        string
	publishableKey string
	storeID        string
	httpClient     *http.Client
	observer       Observer
}

// Options configure a Client.
type Options struct {
	BaseURL        string
	PublishableKey string
	StoreID        string
	HTTPClient     *http.Client
	Observer       Observer
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		publishableKey: opts.PublishableKey,
		storeID:        opts.StoreID,
		httpClient:     opts.HTTPClient,
		observer:       opts.Observer,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	return c
}

// Pool hands out one Client per store, sharing a traced HTTP transport.
type Pool struct {
	httpClient *http.Client
	observer   Observer
	mu         sync.RWMutex
	byStore    map[string]*Client
}

func NewPool(timeout time.Duration, observer Observer) *Pool {
	return &Pool{
		httpClient: &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		observer:   observer,
		byStore:    map[string]*Client{},
	}
}

// For returns the client for s, rebuilding it when the store's upstream settings changed.
func (p *Pool) For(s stores.Store) *Client {
	p.mu.RLock()
	c, ok := p.byStore[s.ID]
	p.mu.RUnlock()
	if ok && c.baseURL == s.MedusaURL && c.publishableKey == s.PublishableKey {
		return c
	}
	c = NewClient(Options{BaseURL: s.MedusaURL, PublishableKey: s.PublishableKey, StoreID: s.ID, HTTPClient: p.httpClient, Observer: p.observer})
	p.mu.Lock()
	p.byStore[s.ID] = c
	p.mu.Unlock()
	return c
}

// do performs a request against the Store API and decodes the JSON answer into out (may be nil).
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if err := c.Ready(); err != nil {
		return err
	}
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("medusa: encode %s: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, full, rdr)
	if err != nil {
		return fmt.Errorf("medusa: build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.publishableKey != "" {
		req.Header.Set("x-publishable-api-key", c.publishableKey)
	}
	if tok := CustomerToken(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	call := Call{StoreID: c.storeID, Operation: op, Method: method, Path: path, StartedAt: start}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		call.Duration = time.Since(start)
		c.observer.ObserveCall(ctx, call)
		return fmt.Errorf("medusa: %s: %w", op, err)
	}
	defer resp.Body.Close()
	call.Status = resp.StatusCode

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	call.Duration = time.Since(start)
	c.observer.ObserveCall(ctx, call)
	if err != nil {
		return fmt.Errorf("medusa: read %s: %w", op, err)
	}
	if len(respBody) > maxResponseSize {
		return fmt.Errorf("medusa: %s: response exceeds %d bytes", op, maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		return apiErr
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("medusa: failed to parse %s response: %w", op, err)
	}
	return nil
}

// ErrNoBaseURL is returned when a store has no backend configured.
var ErrNoBaseURL = errors.New("medusa: backend url not configured")

// Ready reports whether the client can make calls.
func (c *Client) Ready() error {
	if c.baseURL == "" {
		return ErrNoBaseURL
	}
	return nil
}
