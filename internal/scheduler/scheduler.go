// Package scheduler drives the periodic jobs: polling the download clients,
// retrying parked releases and searching for monitored authors.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/downloader"
	"github.com/bookarr/bookarr/internal/search"
	"github.com/bookarr/bookarr/internal/tracked"
)

type Scheduler struct {
	cron    *cron.Cron
	clients []downloader.Client
	tracked *tracked.Service
	search  *search.Service
	log     *logrus.Logger

	pollInterval    time.Duration
	searchInterval  time.Duration
	pendingInterval time.Duration
}

func New(clients []downloader.Client, trackedSvc *tracked.Service, searchSvc *search.Service, pollInterval, searchInterval, pendingInterval time.Duration, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:            cron.New(),
		clients:         clients,
		tracked:         trackedSvc,
		search:          searchSvc,
		log:             log,
		pollInterval:    pollInterval,
		searchInterval:  searchInterval,
		pendingInterval: pendingInterval,
	}
}

// Start registers the jobs and begins scheduling. The context bounds each job
// run; Stop still has to be called on shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"client poll", s.pollInterval, s.pollClients},
		{"pending retry", s.pendingInterval, s.retryPending},
		{"monitored search", s.searchInterval, s.searchMonitored},
	}

	for _, job := range jobs {
		job := job
		spec := fmt.Sprintf("@every %s", job.interval)
		if _, err := s.cron.AddFunc(spec, func() {
			if ctx.Err() != nil {
				return
			}
			job.run(ctx)
		}); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}
		s.log.WithFields(logrus.Fields{
			"job":      job.name,
			"interval": job.interval,
		}).Info("Job scheduled")
	}

	s.cron.Start()

	// First poll right away so the queue view is warm before the first tick
	go s.pollClients(ctx)
	return nil
}

// Stop halts scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("Scheduler stopped")
}

// pollClients gathers the current items of every download client and feeds
// them to the tracker in one batch. Pruning of vanished ids happens only when
// every client answered: a failed client's downloads are still out there, and
// a transport outage must not mark them non-trackable.
func (s *Scheduler) pollClients(ctx context.Context) {
	var items []downloader.Item
	polled, failed := 0, 0

	for _, client := range s.clients {
		clientItems, err := client.List(ctx)
		if err != nil {
			s.log.WithError(err).WithField("client", client.Name()).Warn("Download client poll failed")
			failed++
			continue
		}
		polled++
		items = append(items, clientItems...)
	}

	if polled == 0 && len(s.clients) > 0 {
		return
	}

	fullPoll := failed == 0
	if err := s.tracked.ProcessClientItems(ctx, items, fullPoll); err != nil {
		s.log.WithError(err).Error("Failed to process download client items")
	}
}

func (s *Scheduler) retryPending(ctx context.Context) {
	if err := s.search.RetryPending(ctx); err != nil {
		s.log.WithError(err).Error("Pending retry failed")
	}
}

func (s *Scheduler) searchMonitored(ctx context.Context) {
	s.search.SearchMonitored(ctx)
}
