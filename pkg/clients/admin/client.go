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

package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/tidwall/gjson"

	"github.com/xzinc/IPL/pkg/common/structs"
	"github.com/xzinc/IPL/pkg/request"
	"github.com/xzinc/IPL/pkg/request/httpclient"
	"github.com/xzinc/IPL/pkg/types"
)

const (
	serviceName  = "iplstore-admin"
	apiKeyHeader = "X-API-Key"
	apiPrefix    = "/api/v1"
)

type Config struct {
	// BaseURL is the admin API root, e.g. http://localhost:8080
	BaseURL string
	APIKey  string
	// Username and Password are used for basic and ldap auth modes
	Username string
	Password string
	Timeout  time.Duration
}

// APIError is a non-2xx reply from the admin API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("admin api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("admin api returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running iplstore admin API
type Client struct {
	client  heimdall.Doer
	baseURL string
	cfg     Config
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("%w: admin api base url is required", types.ErrConfiguration)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("%w: invalid admin api url %q: %v", types.ErrConfiguration, base, err)
	}

	poolCfg := httpclient.DefaultConnectionPoolConfig()
	if cfg.Timeout > 0 {
		poolCfg.Timeout = int(cfg.Timeout.Milliseconds())
	}

	// operator commands are not idempotent enough to retry blindly
	client, err := httpclient.InitializeClient(serviceName, poolCfg, httpclient.ResiliencyConfig{}, nil, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize http client: %w", err)
	}
	return &Client{client: client, baseURL: base, cfg: cfg}, nil
}

func (c *Client) Backends(ctx context.Context) (*structs.BackendsResponse, error) {
	out := &structs.BackendsResponse{}
	if err := c.do(ctx, http.MethodGet, "/backends", nil, "Backends", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CheckBackends(ctx context.Context) (*structs.CheckResponse, error) {
	out := &structs.CheckResponse{}
	if err := c.do(ctx, http.MethodPost, "/backends/check", nil, "CheckBackends", out); err != nil {
		return nil, err
	}
	return out, nil
}

// Switch makes the named backend active and pins it there
func (c *Client) Switch(ctx context.Context, backend string) (*structs.SwitchResponse, error) {
	out := &structs.SwitchResponse{}
	path := "/backends/" + url.PathEscape(backend) + "/activate"
	if err := c.do(ctx, http.MethodPost, path, nil, "Switch", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Refresh(ctx context.Context, t types.EntityType) (*structs.RefreshResponse, error) {
	out := &structs.RefreshResponse{}
	path := "/references/" + url.PathEscape(string(t)) + "/refresh"
	if err := c.do(ctx, http.MethodPost, path, nil, "Refresh", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Invalidate(ctx context.Context, t types.EntityType) error {
	return c.do(ctx, http.MethodDelete, "/references/"+url.PathEscape(string(t)), nil, "Invalidate", nil)
}

func (c *Client) Prune(ctx context.Context) (*structs.PruneResponse, error) {
	out := &structs.PruneResponse{}
	if err := c.do(ctx, http.MethodPost, "/interactions/prune", nil, "Prune", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Config(ctx context.Context) (*structs.ConfigView, error) {
	out := &structs.ConfigView{}
	if err := c.do(ctx, http.MethodGet, "/config", nil, "Config", out); err != nil {
		return nil, err
	}
	return out, nil
}

// PatchConfig sends a partial configuration update and returns the applied view
func (c *Client) PatchConfig(ctx context.Context, patch structs.ConfigPatch) (*structs.ConfigView, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	out := &structs.ConfigView{}
	if err := c.do(ctx, http.MethodPatch, "/config", body, "PatchConfig", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, name string, out interface{}) error {
	req, err := request.NewRequest(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	headers := map[string]string{"Accept": "application/json"}
	if body != nil {
		headers["Content-Type"] = "application/json"
	}
	if c.cfg.APIKey != "" {
		headers[apiKeyHeader] = c.cfg.APIKey
	}
	req.SetHeaders(headers)
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, status, err := req.MakeRequest(c.client, name, serviceName)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if status < 200 || status >= 300 {
		return &APIError{StatusCode: status, Message: gjson.GetBytes(resp, "error").String()}
	}
	if out == nil || len(resp) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", name, err)
	}
	return nil
}
