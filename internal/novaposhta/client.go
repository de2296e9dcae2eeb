package novaposhta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://api.novaposhta.ua/v2.0/json/"

var (
	// ErrUnavailable covers transport failures, non-2xx answers, bodies that
	// do not decode and envelopes with success=false.
	ErrUnavailable     = errors.New("carrier unavailable")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found at carrier")
)

// APIError describes one failed carrier call. It matches ErrUnavailable with
// errors.Is, and also any underlying transport error.
type APIError struct {
	Method     string
	StatusCode int
	Messages   []string
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "nova poshta %s", e.Method)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if len(e.Messages) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Err}
}

// Observer receives the outcome of every carrier call.
type Observer interface {
	ObserveCall(method string, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(string, time.Duration, error) {}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
	observer   Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New builds a client for the JSON endpoint at baseURL. Calls are never
// retried: counterparty and document creation are not idempotent upstream.
func New(apiKey, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        slog.Default(),
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	APIKey           string `json:"apiKey"`
	ModelName        string `json:"modelName"`
	CalledMethod     string `json:"calledMethod"`
	MethodProperties any    `json:"methodProperties"`
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Errors   messages        `json:"errors"`
	Warnings messages        `json:"warnings"`
}

// messages accepts both shapes the API uses for errors and warnings: a list
// of strings or an object keyed by code.
type messages []string

func (m *messages) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*m = list
		return nil
	}
	var keyed map[string]string
	if err := json.Unmarshal(data, &keyed); err == nil {
		for _, v := range keyed {
			*m = append(*m, v)
		}
		return nil
	}
	*m = nil
	return nil
}

// number decodes carrier amounts sent either as JSON numbers or as strings,
// with empty strings read as zero.
type number decimal.Decimal

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = number(decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", s, err)
	}
	*n = number(d)
	return nil
}

func (n number) Decimal() decimal.Decimal {
	return decimal.Decimal(n)
}

func (c *Client) call(ctx context.Context, model, method string, props, out any) error {
	name := model + "." + method
	start := time.Now()

	err := c.do(ctx, name, model, method, props, out)

	elapsed := time.Since(start)
	c.observer.ObserveCall(name, elapsed, err)
	if err != nil {
		c.log.WarnContext(ctx, "carrier call failed", "method", name, "duration_ms", elapsed.Milliseconds(), "error", err)
	} else {
		c.log.DebugContext(ctx, "carrier call", "method", name, "duration_ms", elapsed.Milliseconds())
	}
	return err
}

func (c *Client) do(ctx context.Context, name, model, method string, props, out any) error {
	if props == nil {
		props = struct{}{}
	}

	body, err := json.Marshal(request{
		APIKey:           c.apiKey,
		ModelName:        model,
		CalledMethod:     method,
		MethodProperties: props,
	})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Method: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &APIError{Method: name, StatusCode: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Method: name, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if !env.Success {
		return &APIError{Method: name, Messages: env.Errors}
	}
	if len(env.Warnings) > 0 {
		c.log.DebugContext(ctx, "carrier warnings", "method", name, "warnings", []string(env.Warnings))
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Method: name, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}
