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

package kaggle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/klauspost/compress/zip"
	"github.com/tidwall/gjson"

	"github.com/xzinc/IPL/pkg/request"
	"github.com/xzinc/IPL/pkg/request/httpclient"
)

const serviceName = "kaggle"

var zipMagic = []byte("PK\x03\x04")

// Config identifies one file of a Kaggle dataset
type Config struct {
	BaseURL string `mapstructure:"base_url"`
	// Dataset is "<owner>/<slug>"
	Dataset  string `mapstructure:"dataset"`
	File     string `mapstructure:"file"`
	Username string `mapstructure:"username"`
	Key      string `mapstructure:"key"`
}

// Metadata is the subset of the dataset description the puller logs and compares
type Metadata struct {
	Title       string
	LastUpdated time.Time
	Version     int64
	TotalBytes  int64
}

// Client talks to the Kaggle public API with basic auth
type Client struct {
	client   heimdall.Doer
	baseURL  string
	dataset  string
	file     string
	username string
	key      string
}

// NewClient creates a Kaggle client with a heimdall-backed HTTP client
func NewClient(cfg Config,
	poolCfg httpclient.ConnectionPoolConfig,
	resCfg httpclient.ResiliencyConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("kaggle configuration is missing required field: BaseURL")
	}
	if strings.Count(cfg.Dataset, "/") != 1 {
		return nil, fmt.Errorf("kaggle dataset must be <owner>/<slug>: got %q", cfg.Dataset)
	}
	if cfg.Username == "" || cfg.Key == "" {
		return nil, fmt.Errorf("kaggle configuration is missing required fields: Username, Key")
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

	return &Client{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		dataset:  cfg.Dataset,
		file:     cfg.File,
		username: cfg.Username,
		key:      cfg.Key,
	}, nil
}

func (c *Client) sendRequest(ctx context.Context, url, methodName string) ([]byte, error) {
	req, err := request.NewRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.key)

	body, status, err := req.MakeRequest(c.client, methodName, serviceName)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, response: %s", status, truncate(body, 200))
	}
	return body, nil
}

// Metadata describes the dataset's current version
func (c *Client) Metadata(ctx context.Context) (Metadata, error) {
	body, err := c.sendRequest(ctx, c.baseURL+"/datasets/view/"+c.dataset, "Metadata")
	if err != nil {
		return Metadata{}, err
	}
	if !gjson.ValidBytes(body) {
		return Metadata{}, fmt.Errorf("kaggle metadata is not valid JSON")
	}

	res := gjson.GetManyBytes(body, "title", "lastUpdated", "currentVersionNumber", "totalBytes")
	md := Metadata{
		Title:      res[0].String(),
		Version:    res[2].Int(),
		TotalBytes: res[3].Int(),
	}
	if res[1].Exists() {
		md.LastUpdated = res[1].Time()
	}
	return md, nil
}

// DownloadFile returns the configured file, unpacking it when Kaggle serves a zip archive
func (c *Client) DownloadFile(ctx context.Context) ([]byte, error) {
	url := c.baseURL + "/datasets/download/" + c.dataset
	if c.file != "" {
		url += "/" + c.file
	}
	body, err := c.sendRequest(ctx, url, "DownloadFile")
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(body, zipMagic) {
		return body, nil
	}
	return c.unzip(body)
}

func (c *Client) unzip(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("failed to open kaggle archive: %w", err)
	}

	for _, f := range zr.File {
		name := path.Base(f.Name)
		if c.file != "" && name != c.file {
			continue
		}
		if c.file == "" && !strings.HasSuffix(name, ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, request.MaxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s in archive: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("file %q not found in kaggle archive", c.file)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
