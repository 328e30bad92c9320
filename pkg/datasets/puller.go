package datasets

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/xzinc/IPL/pkg/clients/github"
	"github.com/xzinc/IPL/pkg/clients/kaggle"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/types"
)

// DefaultReuseWindow lets the per-type fetches of one refresh share a download
const DefaultReuseWindow = 5 * time.Minute

// Source downloads one match-level CSV
type Source interface {
	Name() string
	Download(ctx context.Context) ([]byte, error)
}

type githubSource struct{ client *github.Client }

func (s githubSource) Name() string { return "github" }
func (s githubSource) Download(ctx context.Context) ([]byte, error) {
	return s.client.DownloadCSV(ctx)
}

// GitHubSource reads the raw CSV published in a GitHub repository
func GitHubSource(c *github.Client) Source { return githubSource{client: c} }

type kaggleSource struct{ client *kaggle.Client }

func (s kaggleSource) Name() string { return "kaggle" }
func (s kaggleSource) Download(ctx context.Context) ([]byte, error) {
	md, err := s.client.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	logger.Logger(ctx).WithFields(logrus.Fields{
		"title":        md.Title,
		"version":      md.Version,
		"last_updated": md.LastUpdated,
	}).Debug("downloading kaggle dataset")
	return s.client.DownloadFile(ctx)
}

// KaggleSource reads a dataset file through the Kaggle API
func KaggleSource(c *kaggle.Client) Source { return kaggleSource{client: c} }

// Puller merges every source and serves the aggregated entities one type at a
// time. Its Fetch method is the freshness cache fetcher for reference types.
type Puller struct {
	sources []Source
	reuse   time.Duration
	group   singleflight.Group

	mu        sync.Mutex
	snapshot  map[types.EntityType][]types.Entity
	fetchedAt time.Time

	now func() time.Time
}

// NewPuller creates a puller. Sources are merged in order; later sources win
// when two rows share a match id.
func NewPuller(reuse time.Duration, sources ...Source) *Puller {
	if reuse <= 0 {
		reuse = DefaultReuseWindow
	}
	return &Puller{sources: sources, reuse: reuse, now: time.Now}
}

// Fetch returns every entity of type t from a recent pull, pulling first when needed
func (p *Puller) Fetch(ctx context.Context, t types.EntityType) ([]types.Entity, error) {
	p.mu.Lock()
	snap, at := p.snapshot, p.fetchedAt
	p.mu.Unlock()

	if snap == nil || p.now().Sub(at) >= p.reuse {
		v, err, _ := p.group.Do("pull", func() (interface{}, error) {
			return p.Pull(ctx)
		})
		if err != nil {
			return nil, err
		}
		snap = v.(map[types.EntityType][]types.Entity)
	}

	entities := snap[t]
	if len(entities) == 0 {
		return nil, fmt.Errorf("no %s entities in the datasets", t)
	}
	return append([]types.Entity(nil), entities...), nil
}

// Pull downloads every source concurrently, merges and aggregates them.
// A failing source is skipped as long as another one succeeded.
func (p *Puller) Pull(ctx context.Context) (map[types.EntityType][]types.Entity, error) {
	if len(p.sources) == 0 {
		return nil, fmt.Errorf("%w: no dataset sources configured", types.ErrConfiguration)
	}

	results := make([][]Match, len(p.sources))
	errs := make([]error, len(p.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range p.sources {
		g.Go(func() error {
			raw, err := src.Download(gctx)
			if err == nil {
				results[i], err = ParseMatches(bytes.NewReader(raw))
			}
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				logger.Logger(ctx).WithField("source", src.Name()).WithError(err).Warn("dataset source failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var usable [][]Match
	for i := range p.sources {
		if errs[i] == nil {
			usable = append(usable, results[i])
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("every dataset source failed: %w", utilerrors.NewAggregate(errs))
	}

	merged := Merge(usable...)
	snap := Aggregate(merged)

	p.mu.Lock()
	p.snapshot, p.fetchedAt = snap, p.now()
	p.mu.Unlock()

	logger.Logger(ctx).WithFields(logrus.Fields{
		"matches": len(merged),
		"teams":   len(snap[types.EntityTeam]),
		"players": len(snap[types.EntityPlayer]),
		"venues":  len(snap[types.EntityVenue]),
	}).Info("datasets pulled")
	return snap, nil
}
