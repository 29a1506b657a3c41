// Package grab turns a batch of pipeline decisions into dispatched downloads:
// deduplicate, prioritize, grab the winners, park the retryable rest.
package grab

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/decision"
	"github.com/bookarr/bookarr/internal/downloader"
	"github.com/bookarr/bookarr/internal/eventbus"
	"github.com/bookarr/bookarr/internal/history"
	"github.com/bookarr/bookarr/internal/metrics"
	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/pending"
)

// Result reports what happened to a batch. Partial failure never raises; it
// is captured here for logging and UI feedback.
type Result struct {
	Grabbed  []*decision.Decision
	Rejected []*decision.Decision
}

type Processor struct {
	clients map[models.Protocol]downloader.Client
	history *history.Service
	pending *pending.Service
	bus     eventbus.Publisher
	log     *logrus.Logger
}

func NewProcessor(clients []downloader.Client, historySvc *history.Service, pendingSvc *pending.Service, bus eventbus.Publisher, log *logrus.Logger) *Processor {
	byProtocol := make(map[models.Protocol]downloader.Client, len(clients))
	for _, client := range clients {
		byProtocol[client.Protocol()] = client
	}
	return &Processor{
		clients: byProtocol,
		history: historySvc,
		pending: pendingSvc,
		bus:     bus,
		log:     log,
	}
}

// ProcessDecisions grabs the accepted decisions in priority order, at most
// one grab per book per batch. Transport faults fail fast per protocol;
// everything rejected-temporary and not grabbed lands in the pending queue.
// The only error returned is a ledger write failure, which must propagate.
func (p *Processor) ProcessDecisions(ctx context.Context, decisions []*decision.Decision) (Result, error) {
	var result Result

	accepted := make([]*decision.Decision, 0, len(decisions))
	for _, d := range decisions {
		if d.Accepted() {
			accepted = append(accepted, d)
		} else {
			result.Rejected = append(result.Rejected, d)
		}
	}

	prioritize(accepted)

	grabbedBooks := make(map[uint64]bool)
	failedProtocols := make(map[models.Protocol]error)

	for _, d := range accepted {
		remote := d.Remote
		protocol := remote.Release.Protocol

		if anyGrabbed(grabbedBooks, remote.BookIDs()) {
			d.Rejections = append(d.Rejections, decision.Rejection{
				Reason: "A release for this book was already grabbed in this batch",
				Kind:   decision.Temporary,
			})
			result.Rejected = append(result.Rejected, d)
			continue
		}

		if faultErr, ok := failedProtocols[protocol]; ok {
			d.Rejections = append(d.Rejections, decision.Rejection{
				Reason: "Download client for " + string(protocol) + " is unavailable: " + faultErr.Error(),
				Kind:   decision.Temporary,
			})
			result.Rejected = append(result.Rejected, d)
			continue
		}

		client, ok := p.clients[protocol]
		if !ok {
			d.Rejections = append(d.Rejections, decision.Rejection{
				Reason: "No download client configured for " + string(protocol),
				Kind:   decision.Temporary,
			})
			result.Rejected = append(result.Rejected, d)
			continue
		}

		downloadID, err := client.Send(ctx, remote)
		if err != nil {
			switch {
			case errors.Is(err, downloader.ErrReleaseUnavailable):
				// The indexer may serve it again later; report, don't blocklist
				p.log.WithFields(logrus.Fields{
					"title":   remote.Release.Title,
					"indexer": remote.Release.Indexer,
				}).Warn("Release no longer available at the indexer")
				d.Rejections = append(d.Rejections, decision.Rejection{
					Reason: "Release is no longer available at the indexer",
					Kind:   decision.Temporary,
				})
			default:
				// Fail fast for this protocol only; other protocols proceed
				p.log.WithError(err).WithField("protocol", protocol).Error("Download client fault, skipping protocol for this batch")
				metrics.ClientFaultsTotal.WithLabelValues(string(protocol)).Inc()
				failedProtocols[protocol] = err
				d.Rejections = append(d.Rejections, decision.Rejection{
					Reason: "Download client for " + string(protocol) + " is unavailable: " + err.Error(),
					Kind:   decision.Temporary,
				})
			}
			result.Rejected = append(result.Rejected, d)
			continue
		}

		if err := p.recordGrab(remote, downloadID); err != nil {
			// A ledger gap breaks idempotence downstream; this is the one
			// fault that aborts the batch
			return result, err
		}

		for _, id := range remote.BookIDs() {
			grabbedBooks[id] = true
		}
		metrics.GrabsTotal.WithLabelValues(string(protocol)).Inc()
		result.Grabbed = append(result.Grabbed, d)
	}

	if err := p.parkTemporary(result.Rejected, grabbedBooks); err != nil {
		p.log.WithError(err).Error("Failed to park temporarily rejected releases")
	}

	p.log.WithFields(logrus.Fields{
		"grabbed":  len(result.Grabbed),
		"rejected": len(result.Rejected),
	}).Info("Decision batch processed")
	return result, nil
}

func (p *Processor) recordGrab(remote *models.RemoteBook, downloadID string) error {
	entry := &models.HistoryEntry{
		AuthorID:    remote.Author.ID,
		BookIDs:     remote.BookIDs(),
		DownloadID:  downloadID,
		EventType:   models.HistoryGrabbed,
		SourceTitle: remote.Release.Title,
		Quality:     remote.ParsedQuality,
		Protocol:    remote.Release.Protocol,
		Indexer:     remote.Release.Indexer,
		Data: map[string]string{
			"guid": remote.Release.GUID,
		},
	}
	if err := p.history.Add(entry); err != nil {
		return err
	}

	p.bus.Publish(eventbus.Event{
		Type:       eventbus.DownloadGrabbed,
		AuthorID:   remote.Author.ID,
		BookIDs:    remote.BookIDs(),
		DownloadID: downloadID,
		Data:       map[string]string{"title": remote.Release.Title},
	})
	return nil
}

// parkTemporary collects decisions rejected only for retryable reasons, and
// whose books did not end up grabbed anyway, into the pending queue. Each
// release is parked with its own rejection reason.
func (p *Processor) parkTemporary(rejected []*decision.Decision, grabbedBooks map[uint64]bool) error {
	var candidates []pending.Candidate
	for _, d := range rejected {
		if !d.TemporarilyRejected() {
			continue
		}
		if anyGrabbed(grabbedBooks, d.Remote.BookIDs()) {
			continue
		}
		candidates = append(candidates, pending.Candidate{
			Remote: d.Remote,
			Reason: firstTemporaryReason(d),
		})
	}
	if len(candidates) == 0 {
		return nil
	}
	return p.pending.Add(candidates)
}

// prioritize orders accepted decisions deterministically: indexer priority,
// then quality rank, format score, size and publish date as tie-breaks
func prioritize(decisions []*decision.Decision) {
	sort.SliceStable(decisions, func(i, j int) bool {
		a, b := decisions[i].Remote, decisions[j].Remote

		if a.Release.IndexerPriority != b.Release.IndexerPriority {
			return a.Release.IndexerPriority < b.Release.IndexerPriority
		}
		if a.QualityRank != b.QualityRank {
			return a.QualityRank > b.QualityRank
		}
		if a.FormatScore != b.FormatScore {
			return a.FormatScore > b.FormatScore
		}
		if a.Release.Size != b.Release.Size {
			return a.Release.Size > b.Release.Size
		}
		return a.Release.PublishDate.After(b.Release.PublishDate)
	})
}

func anyGrabbed(grabbed map[uint64]bool, bookIDs []uint64) bool {
	for _, id := range bookIDs {
		if grabbed[id] {
			return true
		}
	}
	return false
}

func firstTemporaryReason(d *decision.Decision) string {
	for _, rejection := range d.Rejections {
		if rejection.Kind == decision.Temporary {
			return rejection.Reason
		}
	}
	return ""
}
