package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/types"
)

const matchesCSV = `id,season,city,date,team1,team2,toss_winner,toss_decision,result,winner,player_of_match,venue
1,2016,Bangalore,2016-05-29,Sunrisers Hyderabad,Royal Challengers Bangalore,Sunrisers Hyderabad,bat,normal,Sunrisers Hyderabad,BCJ Cutting,M Chinnaswamy Stadium
2,2016,Hyderabad,2016-04-12,Sunrisers Hyderabad,Royal Challengers Bangalore,Royal Challengers Bangalore,field,normal,Royal Challengers Bangalore,V Kohli,Rajiv Gandhi International Stadium
`

func testConfig(t *testing.T) *config.AppConfig {
	return &config.AppConfig{
		Backends: []config.Backend{
			{Name: "mongo", Kind: string(types.KindRemoteDocument), Enabled: true},
			{Name: "local", Kind: string(types.KindLocalFile), Enabled: true, Path: t.TempDir()},
		},
		Failover: config.Failover{
			HighWaterMark:     0.95,
			PruneThreshold:    0.85,
			OperationTimeout:  time.Second,
			FailureThreshold:  3,
			RecoveryThreshold: 2,
			AutoFailover:      true,
			Failback:          true,
		},
		Freshness:    config.Freshness{TTL: time.Hour},
		Learning:     config.Learning{Rate: config.LearningNormal, Enabled: true},
		Interactions: config.Interactions{QueueSize: 16, Workers: 1},
	}
}

func TestBuild_SkipsBackendsWithoutConnectionInfo(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	report := a.Store.Status(ctx)
	assert.Equal(t, "local", report.Active)
	require.Len(t, report.Backends, 1)

	require.NoError(t, a.Store.WriteEntity(ctx, types.Entity{Type: types.EntityMatch, Name: "2016 Final"}))
	e, _, err := a.Store.ReadEntity(ctx, types.EntityMatch, "2016-final")
	require.NoError(t, err)
	assert.Equal(t, "2016 Final", e.Name)
}

func TestBuild_RejectsMissingDatasetSources(t *testing.T) {
	cfg := testConfig(t)
	cfg.Datasets = config.Datasets{Enabled: true}

	_, err := Build(context.Background(), cfg)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestRun_ServesDatasetsUntilCancelled(t *testing.T) {
	var downloads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		downloads.Add(1)
		_, _ = w.Write([]byte(matchesCSV))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Datasets = config.Datasets{
		Enabled:         true,
		RefreshSchedule: "@daily",
		Timeout:         5 * time.Second,
		GitHub:          config.GitHub{URL: srv.URL + "/matches.csv"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	a, err := Build(ctx, cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	team, fromCache, err := a.Store.ReadEntity(ctx, types.EntityTeam, "Sunrisers Hyderabad")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 2.0, team.Stats["matches_played"])

	venue, _, err := a.Store.ReadEntity(ctx, types.EntityVenue, "M Chinnaswamy Stadium")
	require.NoError(t, err)
	assert.Equal(t, "Bangalore", venue.Attributes["city"])
	assert.Equal(t, int32(1), downloads.Load(), "per-type fetches share one download")

	a.Store.RecordInteraction(ctx, types.Interaction{UserID: "7", Message: "2016 winner?", Response: "SRH"})

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}

	got, err := a.Store.RecentInteractions(context.Background(), "7", 5)
	require.NoError(t, err)
	assert.Len(t, got, 1, "the interaction log drains before Run returns")
}
