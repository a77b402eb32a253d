// Package transport provides the HTTP client shared by every provider of a
// sync session: timeouts, bounded retries for idempotent calls and the
// mapping of responses onto provider errors.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/sdejongh/remotesync/pkg/logging"
)

// Version is reported in the User-Agent header
var Version = "dev"

// Config holds the transport policy
type Config struct {
	// ConnectTimeout bounds TCP connect and TLS handshake
	ConnectTimeout time.Duration
	// Timeout bounds how long the server may stay silent: waiting for
	// response headers, or a stall while a body is read or written. A
	// transfer that keeps moving is never cut off.
	Timeout time.Duration
	// MaxAttempts is the total number of tries for idempotent requests (1 = no retry)
	MaxAttempts int
	// RetryBackoff is the initial backoff, doubled per attempt up to RetryMaxBackoff
	RetryBackoff    time.Duration
	RetryMaxBackoff time.Duration
	// UserAgent overrides the default User-Agent
	UserAgent string
}

// DefaultUserAgent is the User-Agent sent when Config.UserAgent is empty
func DefaultUserAgent() string {
	return fmt.Sprintf("remotesync/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// DefaultConfig returns the default transport policy
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  10 * time.Second,
		Timeout:         5 * time.Minute,
		MaxAttempts:     3,
		RetryBackoff:    500 * time.Millisecond,
		RetryMaxBackoff: 5 * time.Second,
	}
}

// Client wraps a req client. It is safe for concurrent use and never
// mutated after construction.
type Client struct {
	client *req.Client
	config Config
	logger logging.Logger
	closed atomic.Bool
}

// New creates a transport client
func New(config Config, logger logging.Logger) *Client {
	defaults := DefaultConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.RetryMaxBackoff < config.RetryBackoff {
		config.RetryMaxBackoff = config.RetryBackoff
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent()
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	dialer := &net.Dialer{Timeout: config.ConnectTimeout, KeepAlive: 30 * time.Second}

	c := &Client{config: config, logger: logger}
	c.client = req.C().
		SetUserAgent(config.UserAgent).
		// no overall deadline; idle deadlines on the connection bound stalls
		SetTimeout(0).
		SetDial(idleDialer(dialer, config.Timeout)).
		SetTLSHandshakeTimeout(config.ConnectTimeout).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		SetCommonRetryCount(config.MaxAttempts - 1).
		SetCommonRetryBackoffInterval(config.RetryBackoff, config.RetryMaxBackoff).
		SetCommonRetryCondition(shouldRetry).
		SetCommonRetryHook(func(resp *req.Response, err error) {
			fields := logging.Fields{}
			if resp != nil && resp.Response != nil {
				fields["status"] = resp.StatusCode
			}
			if resp != nil && resp.Request != nil {
				fields["url"] = resp.Request.RawURL
			}
			if err != nil {
				fields["error"] = err.Error()
			}
			c.logger.Warn(context.Background(), "Retrying request", fields)
		})
	c.client.GetTransport().SetResponseHeaderTimeout(config.Timeout)

	return c
}

// shouldRetry retries transport failures and gateway statuses. Cancelled
// requests are never retried.
func shouldRetry(resp *req.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil || resp.Response == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Idempotent returns a request that follows the retry policy. Use it for
// probes, listings and downloads.
func (c *Client) Idempotent(ctx context.Context) *req.Request {
	return c.client.R().SetContext(ctx)
}

// Once returns a request that is never retried. Use it for uploads and any
// other call that mutates remote state.
func (c *Client) Once(ctx context.Context) *req.Request {
	return c.client.R().SetContext(ctx).SetRetryCount(0)
}

// Config returns the effective transport policy
func (c *Client) Config() Config {
	return c.config
}

// Closed reports whether Close has been called
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// Close releases idle connections. Requests issued afterwards still work
// but open new connections.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.client.GetClient().CloseIdleConnections()
	return nil
}
