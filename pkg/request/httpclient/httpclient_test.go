package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzinc/IPL/pkg/request"
)

func testPool() ConnectionPoolConfig {
	cfg := DefaultConnectionPoolConfig()
	cfg.Timeout = 2000
	return cfg
}

func TestInitializeClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("season,team\n2008,RR\n"))
	}))
	defer srv.Close()

	client, err := InitializeClient("github", testPool(), ResiliencyConfig{},
		heimdall.NewRetrier(heimdall.NewConstantBackoff(time.Millisecond, time.Millisecond)), 3, nil)
	require.NoError(t, err)

	req, err := request.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	body, status, err := req.MakeRequest(client, "DownloadCSV", "github")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "season,team\n2008,RR\n", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestInitializeClient_BreakerOpensOnRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := InitializeClient("kaggle", testPool(),
		ResiliencyConfig{ConsecutiveFailures: 2, OpenTimeout: 60000, HalfOpenRequests: 1},
		nil, 0, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		req, err := request.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		_, status, err := req.MakeRequest(client, "Download", "kaggle")
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, status)
	}

	req, err := request.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, _, err = req.MakeRequest(client, "Download", "kaggle")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInitializeClient_RequiresName(t *testing.T) {
	_, err := InitializeClient("", testPool(), ResiliencyConfig{}, nil, 0, nil)
	assert.Error(t, err)
}
