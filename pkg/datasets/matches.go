package datasets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Match is one row of a match-level IPL dataset. Both supported sources use
// the same column names; columns a source lacks stay empty.
type Match struct {
	ID            string
	Season        string
	City          string
	Date          string
	Venue         string
	Team1         string
	Team2         string
	TossWinner    string
	TossDecision  string
	Winner        string
	PlayerOfMatch string
	MatchType     string
	// TargetRuns is the chasing side's target, 0 when unknown
	TargetRuns float64
}

var columns = map[string]func(m *Match, v string){
	"id":              func(m *Match, v string) { m.ID = v },
	"season":          func(m *Match, v string) { m.Season = normalizeSeason(v) },
	"city":            func(m *Match, v string) { m.City = v },
	"date":            func(m *Match, v string) { m.Date = v },
	"venue":           func(m *Match, v string) { m.Venue = v },
	"team1":           func(m *Match, v string) { m.Team1 = v },
	"team2":           func(m *Match, v string) { m.Team2 = v },
	"toss_winner":     func(m *Match, v string) { m.TossWinner = v },
	"toss_decision":   func(m *Match, v string) { m.TossDecision = v },
	"winner":          func(m *Match, v string) { m.Winner = v },
	"player_of_match": func(m *Match, v string) { m.PlayerOfMatch = v },
	"match_type":      func(m *Match, v string) { m.MatchType = v },
	"target_runs": func(m *Match, v string) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			m.TargetRuns = f
		}
	},
}

// ParseMatches reads a CSV with a header row. Unknown columns are ignored and
// rows without an id or both teams are skipped.
func ParseMatches(r io.Reader) ([]Match, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	setters := make([]func(m *Match, v string), len(header))
	known := 0
	for i, name := range header {
		if set, ok := columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))]; ok {
			setters[i] = set
			known++
		}
	}
	if known == 0 {
		return nil, fmt.Errorf("dataset header has no known columns: %v", header)
	}

	var out []Match
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset row: %w", err)
		}

		var m Match
		for i, v := range record {
			if i < len(setters) && setters[i] != nil {
				v = strings.TrimSpace(v)
				if v == "NA" {
					v = ""
				}
				setters[i](&m, v)
			}
		}
		if m.ID == "" || m.Team1 == "" || m.Team2 == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Merge combines sources by match id; later sources win on conflicts
func Merge(sources ...[]Match) []Match {
	index := make(map[string]int)
	var out []Match
	for _, src := range sources {
		for _, m := range src {
			if i, ok := index[m.ID]; ok {
				out[i] = m
				continue
			}
			index[m.ID] = len(out)
			out = append(out, m)
		}
	}
	return out
}

// normalizeSeason turns "2007/08" style seasons into the tournament year
func normalizeSeason(v string) string {
	before, after, found := strings.Cut(v, "/")
	if !found || len(before) != 4 || len(after) != 2 {
		return v
	}
	return before[:2] + after
}
