package datasets

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzinc/IPL/pkg/types"
)

const kaggleCSV = `id,season,city,date,match_type,player_of_match,venue,team1,team2,toss_winner,toss_decision,winner,result,result_margin,target_runs
1,2007/08,Chennai,2008-04-19,League,SR Tendulkar,MA Chidambaram Stadium,Chennai Super Kings,Mumbai Indians,Mumbai Indians,field,Mumbai Indians,wickets,5,160
2,2007/08,Mumbai,2008-05-14,League,MS Dhoni,Wankhede Stadium,Mumbai Indians,Chennai Super Kings,Chennai Super Kings,bat,Chennai Super Kings,runs,9,181
3,2010,Mumbai,2010-04-25,Final,SK Raina,Wankhede Stadium,Chennai Super Kings,Mumbai Indians,Chennai Super Kings,bat,Chennai Super Kings,runs,22,169
`

const githubCSV = `id,season,city,date,team1,team2,toss_winner,toss_decision,result,dl_applied,winner,win_by_runs,win_by_wickets,player_of_match,venue
3,2010,Mumbai,2010-04-25,Chennai Super Kings,Mumbai Indians,Chennai Super Kings,bat,normal,0,Mumbai Indians,0,5,SR Tendulkar,Wankhede Stadium
4,2010,Chennai,2010-03-21,Chennai Super Kings,Mumbai Indians,Mumbai Indians,bat,no result,0,NA,0,0,NA,MA Chidambaram Stadium
5,2010,Chennai,2010-03-22,,Mumbai Indians,Mumbai Indians,bat,normal,0,Mumbai Indians,0,0,,MA Chidambaram Stadium
`

func parse(t *testing.T, csv string) []Match {
	t.Helper()
	m, err := ParseMatches(strings.NewReader(csv))
	require.NoError(t, err)
	return m
}

func byKey(entities []types.Entity) map[string]types.Entity {
	out := make(map[string]types.Entity, len(entities))
	for _, e := range entities {
		out[e.Key] = e
	}
	return out
}

func TestParseMatches(t *testing.T) {
	kaggle := parse(t, kaggleCSV)
	require.Len(t, kaggle, 3)
	assert.Equal(t, "2008", kaggle[0].Season)
	assert.Equal(t, "Final", kaggle[2].MatchType)
	assert.Equal(t, 169.0, kaggle[2].TargetRuns)

	github := parse(t, githubCSV)
	require.Len(t, github, 2, "rows without both teams are skipped")
	assert.Empty(t, github[1].Winner)
	assert.Empty(t, github[1].PlayerOfMatch)

	_, err := ParseMatches(strings.NewReader(""))
	assert.Error(t, err)
	_, err = ParseMatches(strings.NewReader("a,b\n1,2\n"))
	assert.Error(t, err)
}

func TestMerge_LaterSourceWins(t *testing.T) {
	merged := Merge(parse(t, githubCSV), parse(t, kaggleCSV))
	require.Len(t, merged, 4)
	assert.Equal(t, "3", merged[0].ID)
	assert.Equal(t, "Chennai Super Kings", merged[0].Winner)
	assert.Equal(t, "SK Raina", merged[0].PlayerOfMatch)
}

func TestAggregate(t *testing.T) {
	out := Aggregate(Merge(parse(t, githubCSV), parse(t, kaggleCSV)))

	teams := byKey(out[types.EntityTeam])
	require.Len(t, teams, 2)
	csk := teams["chennai-super-kings"]
	assert.Equal(t, map[string]float64{
		"matches_played":          4,
		"wins":                    2,
		"losses":                  2,
		"win_percentage":          50,
		"titles":                  1,
		"seasons":                 2,
		"season_win_rate_mean":    0.5,
		"season_win_rate_std_dev": 0,
	}, csk.Stats)
	assert.Equal(t, "MA Chidambaram Stadium", csk.Attributes["home_ground"])

	mi := teams["mumbai-indians"]
	assert.Equal(t, 25.0, mi.Stats["win_percentage"])
	assert.Equal(t, 0.25, mi.Stats["season_win_rate_mean"])
	assert.Equal(t, 0.35, mi.Stats["season_win_rate_std_dev"])
	assert.Zero(t, mi.Stats["titles"])

	venues := byKey(out[types.EntityVenue])
	wankhede := venues["wankhede-stadium"]
	assert.Equal(t, "Mumbai", wankhede.Attributes["city"])
	assert.Equal(t, map[string]float64{
		"matches_hosted":              2,
		"chasing_win_percentage":      0,
		"toss_win_match_win_pct":      100,
		"avg_first_innings_score":     174,
		"highest_first_innings_score": 180,
		"lowest_first_innings_score":  168,
	}, wankhede.Stats)
	assert.Equal(t, 100.0, venues["ma-chidambaram-stadium"].Stats["chasing_win_percentage"])

	players := out[types.EntityPlayer]
	require.Len(t, players, 3)
	assert.Equal(t, []string{"ms-dhoni", "sk-raina", "sr-tendulkar"},
		[]string{players[0].Key, players[1].Key, players[2].Key})
	assert.Equal(t, "Mumbai Indians", players[2].Attributes["team"])
	assert.Equal(t, "2008", players[2].Attributes["first_award_season"])
}

type fakeSource struct {
	name  string
	data  string
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Download(context.Context) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.data), nil
}

func TestPuller_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("types share one pull within the reuse window", func(t *testing.T) {
		gh := &fakeSource{name: "github", data: githubCSV}
		kg := &fakeSource{name: "kaggle", data: kaggleCSV}
		p := NewPuller(time.Minute, gh, kg)
		now := time.Date(2024, 4, 1, 4, 0, 0, 0, time.UTC)
		p.now = func() time.Time { return now }

		teams, err := p.Fetch(ctx, types.EntityTeam)
		require.NoError(t, err)
		assert.Len(t, teams, 2)
		venues, err := p.Fetch(ctx, types.EntityVenue)
		require.NoError(t, err)
		assert.Len(t, venues, 2)
		assert.Equal(t, int32(1), gh.calls.Load())

		now = now.Add(2 * time.Minute)
		_, err = p.Fetch(ctx, types.EntityPlayer)
		require.NoError(t, err)
		assert.Equal(t, int32(2), kg.calls.Load())
	})

	t.Run("one failing source is tolerated", func(t *testing.T) {
		p := NewPuller(time.Minute,
			&fakeSource{name: "github", err: errors.New("503")},
			&fakeSource{name: "kaggle", data: kaggleCSV})
		teams, err := p.Fetch(ctx, types.EntityTeam)
		require.NoError(t, err)
		assert.Equal(t, 3.0, byKey(teams)["chennai-super-kings"].Stats["matches_played"])
	})

	t.Run("every source failing is an error", func(t *testing.T) {
		p := NewPuller(time.Minute,
			&fakeSource{name: "github", err: errors.New("503")},
			&fakeSource{name: "kaggle", data: "not,a,dataset\n"})
		_, err := p.Fetch(ctx, types.EntityTeam)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "github")
		assert.Contains(t, err.Error(), "kaggle")
	})

	t.Run("no sources", func(t *testing.T) {
		_, err := NewPuller(0).Fetch(ctx, types.EntityTeam)
		assert.ErrorIs(t, err, types.ErrConfiguration)
	})
}
