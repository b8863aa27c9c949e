// Package clients talks to the upstream offers vendor.
package clients

import (
	"context"
	"errors"
	"fmt"
	gohttp "net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/shashiranjanraj/offersync/pkg/http"
	"github.com/shashiranjanraj/offersync/pkg/logger"
	"github.com/shashiranjanraj/offersync/pkg/metrics"
)

// ErrUnavailable wraps every transport-level failure (DNS, refused
// connection, timeout, undecodable body).
var ErrUnavailable = errors.New("vendor: unavailable")

// StatusError reports an HTTP status the vendor API was not expected to
// return for the endpoint.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vendor: %s returned %d", e.Endpoint, e.Status)
}

// RegisterPayload is the body of POST /products/register.
type RegisterPayload struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// OfferPayload is one element of GET /products/{id}/offers.
type OfferPayload struct {
	ID           int64 `json:"id"`
	Price        int64 `json:"price"`
	ItemsInStock int64 `json:"items_in_stock"`
}

// VendorClient is the HTTP client for the vendor API. Every call is sent
// once with an explicit timeout and waits on a shared rate limiter.
type VendorClient struct {
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	client  *gohttp.Client
}

// Option customises a VendorClient.
type Option func(*VendorClient)

// WithHTTPClient sends requests through c instead of http.DefaultClient.
func WithHTTPClient(c *gohttp.Client) Option {
	return func(v *VendorClient) { v.client = c }
}

// WithRatePerMinute replaces the default limiter.
func WithRatePerMinute(n int) Option {
	return func(v *VendorClient) {
		if n > 0 {
			v.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
		}
	}
}

// NewVendorClient builds a client for baseURL (without trailing slash).
func NewVendorClient(baseURL string, timeout time.Duration, opts ...Option) *VendorClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	v := &VendorClient{
		baseURL: baseURL,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Every(time.Second), 60),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Authenticate performs the access-token handshake. Only 201 is accepted.
func (v *VendorClient) Authenticate(ctx context.Context) (string, error) {
	resp, err := v.send(ctx, "auth", http.Post(v.baseURL+"/auth"))
	if err != nil {
		return "", err
	}
	if err := resp.Expect(gohttp.StatusCreated); err != nil {
		return "", statusError("auth", err)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := resp.JSON(&body); err != nil {
		return "", fmt.Errorf("%w: auth: %v", ErrUnavailable, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: auth: empty access_token", ErrUnavailable)
	}
	return body.AccessToken, nil
}

// RegisterProduct announces a product to the vendor. Only 201 is success;
// any other status is returned as a *StatusError.
func (v *VendorClient) RegisterProduct(ctx context.Context, token string, p RegisterPayload) error {
	req := http.Post(v.baseURL+"/products/register").
		Header("Bearer", token).
		Body(p)

	resp, err := v.send(ctx, "register", req)
	if err != nil {
		return err
	}
	if err := resp.Expect(gohttp.StatusCreated); err != nil {
		return statusError("register", err)
	}
	return nil
}

// ProductOffers fetches the vendor's current offers for productID. Only 200
// is success.
func (v *VendorClient) ProductOffers(ctx context.Context, token string, productID uint) ([]OfferPayload, error) {
	url := v.baseURL + "/products/" + strconv.FormatUint(uint64(productID), 10) + "/offers"
	resp, err := v.send(ctx, "offers", http.Get(url).Header("Bearer", token))
	if err != nil {
		return nil, err
	}
	if err := resp.Expect(gohttp.StatusOK); err != nil {
		return nil, statusError("offers", err)
	}

	offers := []OfferPayload{}
	if len(resp.Raw) == 0 {
		return offers, nil
	}
	if err := resp.JSON(&offers); err != nil {
		return nil, fmt.Errorf("%w: offers: %v", ErrUnavailable, err)
	}
	return offers, nil
}

func (v *VendorClient) send(ctx context.Context, endpoint string, req *http.Request) (*http.Response, error) {
	start := time.Now()

	req = req.Timeout(v.timeout).Limit(v.limiter).WithContext(ctx)
	if v.client != nil {
		req = req.Using(v.client)
	}

	resp, err := req.Send()
	if err != nil {
		metrics.RecordUpstream(endpoint, 0, start)
		logger.WithCtx(ctx).Warn("vendor: request failed", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}

	metrics.RecordUpstream(endpoint, resp.StatusCode, start)
	logger.WithCtx(ctx).Debug("vendor: response",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)
	return resp, nil
}

// statusError tags an unexpected-status error from pkg/http with the
// endpoint it came from.
func statusError(endpoint string, err error) error {
	var se *http.StatusError
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}
	return &StatusError{Endpoint: endpoint, Status: se.StatusCode, Body: se.Body}
}
