package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/airdropbot/core/telegram/netutil"
)

const (
	dialTimeout           = 5 * time.Second
	keepAlive             = 30 * time.Second
	tlsHandshakeTimeout   = 5 * time.Second
	idleConnTimeout       = 30 * time.Second
	clientTimeout         = 30 * time.Second
	transportRetries      = 3
	transportRetryBackoff = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. Transient dial
// and timeout failures are retried when the request body can be replayed.
//
// ResponseHeaderTimeout is left unset: long polling holds getUpdates open
// for the whole poll timeout and the client timeout already bounds it.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: clientTimeout,
		Transport: &retryTransport{
			base:    base,
			retries: transportRetries,
			backoff: transportRetryBackoff,
			retry:   netutil.ShouldRetry,
		},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
	retry   func(error) bool
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			if req.Body != nil && req.GetBody == nil {
				return nil, lastErr
			}
			wait := time.NewTimer(t.backoff * time.Duration(attempt))
			select {
			case <-req.Context().Done():
				wait.Stop()
				return nil, req.Context().Err()
			case <-wait.C:
			}
		}

		r := req
		if attempt > 0 {
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				r.Body = body
			}
		}

		resp, err := t.base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !t.retry(err) {
			break
		}
	}
	return nil, lastErr
}
