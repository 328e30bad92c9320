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

package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gojek/heimdall/v7"

	"github.com/xzinc/IPL/pkg/request"
	"github.com/xzinc/IPL/pkg/request/httpclient"
)

const serviceName = "github"

// Config points at a raw CSV file in a GitHub repository
type Config struct {
	URL string `mapstructure:"url"`
	// Token is optional; public repositories need none
	Token string `mapstructure:"token"`
}

// Client downloads raw dataset files from GitHub
type Client struct {
	client heimdall.Doer
	url    string
	token  string
}

// NewClient creates a GitHub client with a heimdall-backed HTTP client
func NewClient(cfg Config,
	poolCfg httpclient.ConnectionPoolConfig,
	resCfg httpclient.ResiliencyConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("github configuration is missing required field: URL")
	}

	client, err := httpclient.InitializeClient(
		serviceName,
		poolCfg,
		resCfg,
		heimdall.NewRetrier(heimdall.NewConstantBackoff(100*time.Millisecond, 50*time.Millisecond)),
		3,
		nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize http client: %w", err)
	}

	return &Client{client: client, url: cfg.URL, token: cfg.Token}, nil
}

// DownloadCSV returns the raw ball-by-ball CSV
func (c *Client) DownloadCSV(ctx context.Context) ([]byte, error) {
	req, err := request.NewRequest(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	headers := map[string]string{"Accept": "text/csv, text/plain, */*"}
	if c.token != "" {
		headers["Authorization"] = "token " + c.token
	}
	req.SetHeaders(headers)

	body, status, err := req.MakeRequest(c.client, "DownloadCSV", serviceName)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", status)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty dataset from %s", c.url)
	}
	return body, nil
}
