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

package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/opentracing-contrib/go-stdlib/nethttp"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/xzinc/IPL/pkg/logger"
)

// MaxResponseBytes bounds how much of a response body is read
const MaxResponseBytes = 256 << 20

// Request is an outgoing HTTP request bound to a context
type Request struct {
	req *http.Request
}

// NewRequest builds a request; body may be nil
func NewRequest(ctx context.Context, method, url string, body []byte) (*Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, url, err)
	}
	return &Request{req: req}, nil
}

func (r *Request) SetHeaders(headers map[string]string) {
	for k, v := range headers {
		r.req.Header.Set(k, v)
	}
}

func (r *Request) SetBasicAuth(username, password string) {
	r.req.SetBasicAuth(username, password)
}

// MakeRequest sends the request through client inside a span named
// service.methodName and returns the body and status code
func (r *Request) MakeRequest(client heimdall.Doer, methodName, service string) ([]byte, int, error) {
	ctx := r.req.Context()
	log := logger.Logger(ctx).WithFields(logrus.Fields{
		"service": service,
		"method":  methodName,
		"url":     r.req.URL.Redacted(),
	})

	req, tracer := nethttp.TraceRequest(opentracing.GlobalTracer(), r.req,
		nethttp.OperationName(service+"."+methodName),
		nethttp.ComponentName(service))
	defer tracer.Finish()

	start := time.Now()
	resp, err := client.Do(req)
	if resp == nil {
		log.WithError(err).Warn("request failed")
		return nil, 0, err
	}
	defer resp.Body.Close()
	if err != nil {
		// retries exhausted on a server error; the last response is still returned
		log.WithError(err).Debug("request retried")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": time.Since(start).String(),
	}).Debug("request completed")
	return body, resp.StatusCode, nil
}
