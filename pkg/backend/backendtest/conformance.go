// Package backendtest holds the behaviour every backend adapter must share.
package backendtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzinc/IPL/pkg/backend"
	"github.com/xzinc/IPL/pkg/types"
)

// AdapterTestCase is one behavioural check run against a fresh adapter
type AdapterTestCase struct {
	Name       string
	SetupFunc  func(t *testing.T, a backend.Adapter)
	VerifyFunc func(t *testing.T, a backend.Adapter)
}

// Interaction builds an interaction for user at base+offset minutes
func Interaction(user string, base time.Time, offset int) types.Interaction {
	return types.Interaction{
		ID:        uuid.NewString(),
		UserID:    user,
		ChatType:  types.ChatPrivate,
		Message:   fmt.Sprintf("who wins match %d?", offset),
		Response:  "CSK by 5 wickets",
		Timestamp: base.Add(time.Duration(offset) * time.Minute).UTC().Truncate(time.Millisecond),
	}
}

// Team builds a team entity
func Team(name string, wins float64) types.Entity {
	e := types.Entity{
		Type:       types.EntityTeam,
		Name:       name,
		Stats:      map[string]float64{"wins": wins, "matches_played": wins * 2},
		Attributes: map[string]string{"home_ground": "Wankhede Stadium"},
		UpdatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	e.Normalize()
	return e
}

// ConformanceCases are shared by every adapter test suite
func ConformanceCases() []AdapterTestCase {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	return []AdapterTestCase{
		{
			Name:      "missing entity is NotFound",
			SetupFunc: func(t *testing.T, a backend.Adapter) {},
			VerifyFunc: func(t *testing.T, a backend.Adapter) {
				_, err := a.Get(ctx, types.EntityTeam, "nope")
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
		{
			Name: "entity round trip and overwrite",
			SetupFunc: func(t *testing.T, a backend.Adapter) {
				require.NoError(t, a.Put(ctx, Team("Mumbai Indians", 10)))
				require.NoError(t, a.Put(ctx, Team("Mumbai Indians", 11)))
			},
			VerifyFunc: func(t *testing.T, a backend.Adapter) {
				got, err := a.Get(ctx, types.EntityTeam, "mumbai-indians")
				require.NoError(t, err)
				assert.Equal(t, "Mumbai Indians", got.Name)
				assert.Equal(t, 11.0, got.Stats["wins"])
				assert.Equal(t, "Wankhede Stadium", got.Attributes["home_ground"])

				_, err = a.Get(ctx, types.EntityVenue, "mumbai-indians")
				assert.ErrorIs(t, err, types.ErrNotFound, "entity types do not share keys")
			},
		},
		{
			Name: "identical interactions are stored twice",
			SetupFunc: func(t *testing.T, a backend.Adapter) {
				it := Interaction("u1", base, 0)
				retry := it
				retry.ID = uuid.NewString()
				require.NoError(t, a.Append(ctx, it))
				require.NoError(t, a.Append(ctx, retry))
			},
			VerifyFunc: func(t *testing.T, a backend.Adapter) {
				got, err := a.Recent(ctx, "u1", 10)
				require.NoError(t, err)
				assert.Len(t, got, 2)
			},
		},
		{
			Name: "recent is newest first and limited",
			SetupFunc: func(t *testing.T, a backend.Adapter) {
				for _, offset := range []int{3, 1, 4, 2, 0} {
					require.NoError(t, a.Append(ctx, Interaction("u1", base, offset)))
				}
				require.NoError(t, a.Append(ctx, Interaction("u2", base, 9)))
			},
			VerifyFunc: func(t *testing.T, a backend.Adapter) {
				got, err := a.Recent(ctx, "u1", 3)
				require.NoError(t, err)
				require.Len(t, got, 3)
				assert.Equal(t, base.Add(4*time.Minute).UTC().Truncate(time.Millisecond), got[0].Timestamp.UTC())
				assert.True(t, got[0].Timestamp.After(got[1].Timestamp))
				assert.True(t, got[1].Timestamp.After(got[2].Timestamp))

				none, err := a.Recent(ctx, "ghost", 3)
				require.NoError(t, err)
				assert.Empty(t, none)
			},
		},
		{
			Name: "prune keeps the newest max per user",
			SetupFunc: func(t *testing.T, a backend.Adapter) {
				for i := 0; i < 7; i++ {
					require.NoError(t, a.Append(ctx, Interaction("u1", base, i)))
				}
				for i := 0; i < 2; i++ {
					require.NoError(t, a.Append(ctx, Interaction("u2", base, i)))
				}
			},
			VerifyFunc: func(t *testing.T, a backend.Adapter) {
				removed, err := a.Prune(ctx, types.PrunePolicy{MaxPerUser: 5})
				require.NoError(t, err)
				assert.Equal(t, 2, removed)

				got, err := a.Recent(ctx, "u1", 0)
				require.NoError(t, err)
				require.Len(t, got, 5)
				for i, it := range got {
					want := base.Add(time.Duration(6-i) * time.Minute).UTC().Truncate(time.Millisecond)
					assert.Equal(t, want, it.Timestamp.UTC())
				}

				other, err := a.Recent(ctx, "u2", 0)
				require.NoError(t, err)
				assert.Len(t, other, 2)
			},
		},
		{
			Name: "prune drops interactions past retention",
			SetupFunc: func(t *testing.T, a backend.Adapter) {
				for i := 0; i < 4; i++ {
					require.NoError(t, a.Append(ctx, Interaction("u1", base, i*10)))
				}
			},
			VerifyFunc: func(t *testing.T, a backend.Adapter) {
				removed, err := a.Prune(ctx, types.PrunePolicy{Before: base.Add(15 * time.Minute)})
				require.NoError(t, err)
				assert.Equal(t, 2, removed)

				got, err := a.Recent(ctx, "u1", 0)
				require.NoError(t, err)
				assert.Len(t, got, 2)
			},
		},
	}
}

// RunConformanceTests runs every conformance case against a fresh adapter from factory
func RunConformanceTests(t *testing.T, factory func(t *testing.T) backend.Adapter) {
	for _, tt := range ConformanceCases() {
		t.Run(tt.Name, func(t *testing.T) {
			a := factory(t)
			tt.SetupFunc(t, a)
			tt.VerifyFunc(t, a)
		})
	}
}
