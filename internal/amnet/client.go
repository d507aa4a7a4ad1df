// internal/amnet/client.go
package amnet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// noDataSentinel is the exact wrapper message AM.net returns when a record
// does not exist. It is the only reliable way to tell "absent" apart from a
// genuine failure, so it must be matched verbatim.
const noDataSentinel = "SyncErrorCode: 99 | No data"

// ErrNoData reports that the requested record does not exist upstream.
// Callers treat this as a business state (unpublish path), never as a crash.
var ErrNoData = errors.New("amnet: no data for record")

// RemoteError is a transient upstream failure. Local state must be left
// untouched when one is returned; the caller may retry.
type RemoteError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("amnet: %s returned %d: %s", e.Endpoint, e.Status, e.Message)
}

// envelope is the result wrapper AM.net puts around every response.
type envelope struct {
	ErrorMessage string `json:"ErrorMessage"`
}

// Client is the remote record client for the AM.net API.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	tracer   trace.Tracer
	maxTries uint
}

// NewClient creates an AM.net client with retry, rate-limit, and
// circuit-breaker defaults suitable for batch synchronization.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "amnet",
			MaxRequests: 3,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			IsSuccessful: func(err error) bool {
				// Absent records are a business outcome, not an outage.
				return err == nil || errors.Is(err, ErrNoData)
			},
		}),
		tracer:   otel.Tracer("amnetsync/amnet"),
		maxTries: 4,
	}
}

func (c *Client) GetEvent(ctx context.Context, code, year string) (*Event, error) {
	var ev Event
	params := url.Values{"code": {code}, "yr": {year}}
	if err := c.get(ctx, "Event", params, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *Client) GetProduct(ctx context.Context, code string) (*Product, error) {
	var p Product
	if err := c.get(ctx, "Product", url.Values{"code": {code}}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetPerson(ctx context.Context, id int) (*Person, error) {
	var p Person
	if err := c.get(ctx, "Person", url.Values{"id": {strconv.Itoa(id)}}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetRegistrationsSince pulls the event registration feed changed since the
// given instant. An empty feed is a valid result, not ErrNoData.
func (c *Client) GetRegistrationsSince(ctx context.Context, since time.Time) ([]Registration, error) {
	var regs []Registration
	params := url.Values{"since": {since.Format("2006-01-02")}}
	err := c.get(ctx, "EventRegistrations", params, &regs)
	if errors.Is(err, ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func (c *Client) GetProductSalesSince(ctx context.Context, since time.Time) ([]ProductSale, error) {
	var sales []ProductSale
	params := url.Values{"since": {since.Format("2006-01-02")}}
	err := c.get(ctx, "ProductSales", params, &sales)
	if errors.Is(err, ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sales, nil
}

func (c *Client) PushEventRegistration(ctx context.Context, p EventRegistrationPayload) (*PushResult, error) {
	return c.post(ctx, "EventRegistration", p)
}

func (c *Client) PushProductSale(ctx context.Context, p ProductSalePayload) (*PushResult, error) {
	return c.post(ctx, "ProductSale", p)
}

func (c *Client) PushDuesPayment(ctx context.Context, p DuesPaymentPayload) (*PushResult, error) {
	return c.post(ctx, "DuesPayment", p)
}

func (c *Client) PushContribution(ctx context.Context, p ContributionPayload) (*PushResult, error) {
	return c.post(ctx, "Contribution", p)
}

func (c *Client) PushPeerReviewPayment(ctx context.Context, p PeerReviewPaymentPayload) (*PushResult, error) {
	return c.post(ctx, "PeerReviewPayment", p)
}

// get fetches a single endpoint with retries. ErrNoData is permanent and
// surfaces immediately; transient failures are retried with backoff until the
// context is done or the attempt budget is spent.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "amnet.get",
		trace.WithAttributes(
			attribute.String("amnet.endpoint", endpoint),
			attribute.String("amnet.params", params.Encode()),
		),
	)
	defer span.End()

	operation := func() ([]byte, error) {
		body, err := c.doOnce(ctx, http.MethodGet, endpoint, params, nil)
		if errors.Is(err, ErrNoData) {
			return nil, backoff.Permanent(err)
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		span.SetAttributes(attribute.Bool("amnet.no_data", errors.Is(err, ErrNoData)))
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// post sends one outbound mutation. Pushes are not retried here: the caller
// records a per-item sync status and relies on AM.net's own idempotence when
// it re-pushes.
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) (*PushResult, error) {
	ctx, span := c.tracer.Start(ctx, "amnet.post",
		trace.WithAttributes(attribute.String("amnet.endpoint", endpoint)),
	)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", endpoint, err)
	}

	respBody, err := c.doOnce(ctx, http.MethodPost, endpoint, nil, body)
	if err != nil {
		return nil, err
	}

	var result PushResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	span.SetAttributes(attribute.Bool("amnet.processed", result.Processed))
	return &result, nil
}

// doOnce performs a single HTTP exchange through the rate limiter and
// circuit breaker and maps the result wrapper onto the error taxonomy.
func (c *Client) doOnce(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		u := c.baseURL + "/" + endpoint
		if len(params) > 0 {
			u += "?" + params.Encode()
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("X-Api-Key", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return nil, fmt.Errorf("read %s response: %w", endpoint, err)
		}

		// The wrapper error can arrive with any HTTP status, so inspect the
		// body before the status code.
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.ErrorMessage != "" {
			if env.ErrorMessage == noDataSentinel {
				return nil, ErrNoData
			}
			return nil, &RemoteError{Endpoint: endpoint, Status: resp.StatusCode, Message: env.ErrorMessage}
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &RemoteError{Endpoint: endpoint, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return raw, nil
	})
	if err != nil {
		// The breaker never trips on absent records.
		return nil, err
	}
	return result.([]byte), nil
}
