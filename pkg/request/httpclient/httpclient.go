/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httpclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gojek/heimdall/v7"
	heimdallhttp "github.com/gojek/heimdall/v7/httpclient"
	"github.com/opentracing-contrib/go-stdlib/nethttp"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// ConnectionPoolConfig tunes the underlying transport. Durations are in milliseconds.
type ConnectionPoolConfig struct {
	Timeout            int `mapstructure:"timeout"`
	KeepAliveTimeout   int `mapstructure:"keep_alive_timeout"`
	MaxIdleConnections int `mapstructure:"max_idle_connections"`
	IdleConnTimeout    int `mapstructure:"idle_conn_timeout"`
}

// ResiliencyConfig configures the circuit breaker in front of a service.
// Durations are in milliseconds.
type ResiliencyConfig struct {
	// ConsecutiveFailures opens the breaker; 0 disables it
	ConsecutiveFailures uint32 `mapstructure:"consecutive_failures"`
	OpenTimeout         int    `mapstructure:"open_timeout"`
	HalfOpenRequests    uint32 `mapstructure:"half_open_requests"`
}

// DefaultConnectionPoolConfig suits bulk dataset downloads
func DefaultConnectionPoolConfig() ConnectionPoolConfig {
	return ConnectionPoolConfig{
		Timeout:            60000,
		KeepAliveTimeout:   30000,
		MaxIdleConnections: 10,
		IdleConnTimeout:    90000,
	}
}

func DefaultResiliencyConfig() ResiliencyConfig {
	return ResiliencyConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         60000,
		HalfOpenRequests:    1,
	}
}

// ErrCircuitOpen is returned while a service's breaker refuses requests
var ErrCircuitOpen = errors.New("circuit breaker open")

// InitializeClient builds a traced heimdall client with retries behind a circuit breaker
func InitializeClient(
	serviceName string,
	poolCfg ConnectionPoolConfig,
	resCfg ResiliencyConfig,
	retrier heimdall.Retriable,
	retryCount int,
	tlsConfig *tls.Config,
) (heimdall.Doer, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("service name is required")
	}

	if retrier == nil {
		retrier = heimdall.NewNoRetrier()
	}

	timeout := time.Duration(poolCfg.Timeout) * time.Millisecond
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: time.Duration(poolCfg.KeepAliveTimeout) * time.Millisecond,
		}).DialContext,
		MaxIdleConns:        poolCfg.MaxIdleConnections,
		MaxIdleConnsPerHost: poolCfg.MaxIdleConnections,
		IdleConnTimeout:     time.Duration(poolCfg.IdleConnTimeout) * time.Millisecond,
		TLSClientConfig:     tlsConfig,
	}

	client := heimdallhttp.NewClient(
		heimdallhttp.WithHTTPTimeout(timeout),
		heimdallhttp.WithRetrier(retrier),
		heimdallhttp.WithRetryCount(retryCount),
		heimdallhttp.WithHTTPClient(&http.Client{
			Timeout:   timeout,
			Transport: &nethttp.Transport{RoundTripper: transport},
		}),
	)

	if resCfg.ConsecutiveFailures == 0 {
		return client, nil
	}
	return &breakerDoer{
		next: client,
		cb: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        serviceName,
			MaxRequests: resCfg.HalfOpenRequests,
			Timeout:     time.Duration(resCfg.OpenTimeout) * time.Millisecond,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= resCfg.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logrus.WithFields(logrus.Fields{
					"service": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("circuit breaker state changed")
			},
		}),
	}, nil
}

// serverError marks a 5xx response as a breaker failure while still returning it
type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server responded %d", e.status)
}

type breakerDoer struct {
	next heimdall.Doer
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

func (b *breakerDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		resp, err := b.next.Do(req)
		if resp == nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &serverError{status: resp.StatusCode}
		}
		return resp, nil
	})

	var se *serverError
	switch {
	case errors.As(err, &se):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, b.cb.Name(), err)
	}
	return resp, err
}
