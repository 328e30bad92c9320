package datasets

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/xzinc/IPL/pkg/types"
)

type teamTally struct {
	name    string
	played  int
	wins    int
	titles  int
	seasons map[string]*[2]int // season -> {played, wins}
	venues  map[string]int
}

type venueTally struct {
	name         string
	city         string
	hosted       int
	chasingWins  int
	decided      int
	tossAndMatch int
	targets      []float64
}

type playerTally struct {
	name    string
	awards  int
	seasons map[string]bool
	teams   map[string]int
}

// Aggregate derives team, player and venue entities from match rows
func Aggregate(matches []Match) map[types.EntityType][]types.Entity {
	teams := make(map[string]*teamTally)
	venues := make(map[string]*venueTally)
	players := make(map[string]*playerTally)

	team := func(name string) *teamTally {
		t, ok := teams[name]
		if !ok {
			t = &teamTally{name: name, seasons: make(map[string]*[2]int), venues: make(map[string]int)}
			teams[name] = t
		}
		return t
	}

	for _, m := range matches {
		for _, name := range []string{m.Team1, m.Team2} {
			t := team(name)
			t.played++
			s := t.seasons[m.Season]
			if s == nil {
				s = &[2]int{}
				t.seasons[m.Season] = s
			}
			s[0]++
			if m.Venue != "" {
				t.venues[m.Venue]++
			}
			if m.Winner == name {
				t.wins++
				s[1]++
				if strings.EqualFold(m.MatchType, "final") {
					t.titles++
				}
			}
		}

		if m.Venue != "" {
			v, ok := venues[m.Venue]
			if !ok {
				v = &venueTally{name: m.Venue, city: m.City}
				venues[m.Venue] = v
			}
			v.hosted++
			if m.TargetRuns > 0 {
				v.targets = append(v.targets, m.TargetRuns)
			}
			if m.Winner != "" {
				v.decided++
				if m.Winner == m.TossWinner {
					v.tossAndMatch++
				}
				if chasing(m) == m.Winner {
					v.chasingWins++
				}
			}
		}

		if m.PlayerOfMatch != "" {
			p, ok := players[m.PlayerOfMatch]
			if !ok {
				p = &playerTally{name: m.PlayerOfMatch, seasons: make(map[string]bool), teams: make(map[string]int)}
				players[m.PlayerOfMatch] = p
			}
			p.awards++
			p.seasons[m.Season] = true
			if m.Winner != "" {
				p.teams[m.Winner]++
			}
		}
	}

	out := map[types.EntityType][]types.Entity{}
	for _, t := range teams {
		out[types.EntityTeam] = append(out[types.EntityTeam], t.entity())
	}
	for _, v := range venues {
		out[types.EntityVenue] = append(out[types.EntityVenue], v.entity())
	}
	for _, p := range players {
		out[types.EntityPlayer] = append(out[types.EntityPlayer], p.entity())
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	}
	return out
}

func (t *teamTally) entity() types.Entity {
	rates := make([]float64, 0, len(t.seasons))
	for _, s := range t.seasons {
		if s[0] > 0 {
			rates = append(rates, float64(s[1])/float64(s[0]))
		}
	}
	mean, std := stat.MeanStdDev(rates, nil)
	if len(rates) < 2 {
		std = 0
	}

	e := types.Entity{
		Type: types.EntityTeam,
		Name: t.name,
		Stats: map[string]float64{
			"matches_played":          float64(t.played),
			"wins":                    float64(t.wins),
			"losses":                  float64(t.played - t.wins),
			"win_percentage":          percent(t.wins, t.played),
			"titles":                  float64(t.titles),
			"seasons":                 float64(len(t.seasons)),
			"season_win_rate_mean":    round2(mean),
			"season_win_rate_std_dev": round2(std),
		},
		Attributes: map[string]string{},
	}
	if home := mostFrequent(t.venues); home != "" {
		e.Attributes["home_ground"] = home
	}
	e.Normalize()
	return e
}

func (v *venueTally) entity() types.Entity {
	e := types.Entity{
		Type: types.EntityVenue,
		Name: v.name,
		Stats: map[string]float64{
			"matches_hosted":         float64(v.hosted),
			"chasing_win_percentage": percent(v.chasingWins, v.decided),
			"toss_win_match_win_pct": percent(v.tossAndMatch, v.decided),
		},
		Attributes: map[string]string{},
	}
	if len(v.targets) > 0 {
		e.Stats["avg_first_innings_score"] = round2(stat.Mean(v.targets, nil) - 1)
		e.Stats["highest_first_innings_score"] = floats.Max(v.targets) - 1
		e.Stats["lowest_first_innings_score"] = floats.Min(v.targets) - 1
	}
	if v.city != "" {
		e.Attributes["city"] = v.city
	}
	e.Normalize()
	return e
}

func (p *playerTally) entity() types.Entity {
	seasons := make([]string, 0, len(p.seasons))
	for s := range p.seasons {
		seasons = append(seasons, s)
	}
	sort.Strings(seasons)

	e := types.Entity{
		Type: types.EntityPlayer,
		Name: p.name,
		Stats: map[string]float64{
			"player_of_match_awards": float64(p.awards),
			"seasons_awarded":        float64(len(seasons)),
		},
		Attributes: map[string]string{},
	}
	if len(seasons) > 0 {
		e.Attributes["first_award_season"] = seasons[0]
		e.Attributes["last_award_season"] = seasons[len(seasons)-1]
	}
	if t := mostFrequent(p.teams); t != "" {
		e.Attributes["team"] = t
	}
	e.Normalize()
	return e
}

// chasing returns the side batting second, or "" when the toss data is missing
func chasing(m Match) string {
	other := m.Team1
	if m.TossWinner == m.Team1 {
		other = m.Team2
	}
	switch strings.ToLower(m.TossDecision) {
	case "field", "bowl":
		return m.TossWinner
	case "bat":
		return other
	}
	return ""
}

func mostFrequent(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return round2(float64(n) / float64(of) * 100)
}

func round2(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Round(f*100) / 100
}
