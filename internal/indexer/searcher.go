package indexer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/config"
	"github.com/bookarr/bookarr/internal/metrics"
	"github.com/bookarr/bookarr/internal/models"
)

// Searcher fans one query out to every enabled indexer
type Searcher struct {
	client   *Client
	indexers []config.IndexerConfig
	log      *logrus.Logger
}

func NewSearcher(client *Client, indexers []config.IndexerConfig, log *logrus.Logger) *Searcher {
	return &Searcher{
		client:   client,
		indexers: indexers,
		log:      log,
	}
}

// SearchAll queries every enabled indexer concurrently and merges the results.
// A slow or failing indexer is logged and skipped; it never blocks or poisons
// the results of the others.
func (s *Searcher) SearchAll(ctx context.Context, query string) []models.ReleaseInfo {
	type searchResult struct {
		indexer  string
		releases []models.ReleaseInfo
		err      error
	}

	results := make(chan searchResult, len(s.indexers))
	var wg sync.WaitGroup

	for _, def := range s.indexers {
		if !def.Enabled {
			continue
		}

		wg.Add(1)
		go func(def config.IndexerConfig) {
			defer wg.Done()

			searchCtx, cancel := context.WithTimeout(ctx, time.Duration(def.TimeoutSeconds)*time.Second)
			defer cancel()

			releases, err := s.client.Search(searchCtx, def, query)
			results <- searchResult{indexer: def.Name, releases: releases, err: err}
		}(def)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var merged []models.ReleaseInfo
	for res := range results {
		if res.err != nil {
			metrics.IndexerFaultsTotal.WithLabelValues(res.indexer).Inc()
			s.log.WithError(res.err).WithField("indexer", res.indexer).Warn("Indexer search failed, skipping")
			continue
		}
		merged = append(merged, res.releases...)
	}

	s.log.WithFields(logrus.Fields{
		"query": query,
		"count": len(merged),
	}).Debug("Indexer fan-out completed")
	return merged
}
