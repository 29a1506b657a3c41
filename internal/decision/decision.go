// Package decision runs release candidates through an ordered chain of
// independent acceptance rules and produces accept/reject verdicts.
package decision

import "github.com/bookarr/bookarr/internal/models"

// RejectionKind separates "never retry" from "not right now"
type RejectionKind string

const (
	// Permanent rejections must never be retried without new information
	Permanent RejectionKind = "permanent"
	// Temporary rejections are retried later, once the blocking condition
	// (recent grab, queued item) has lapsed
	Temporary RejectionKind = "temporary"
)

// Rejection is one human-readable reason a candidate was declined
type Rejection struct {
	Reason string
	Kind   RejectionKind
}

// Decision is the verdict for one candidate. Exactly one decision exists per
// candidate per batch.
type Decision struct {
	Remote     *models.RemoteBook
	Rejections []Rejection
}

// Accepted reports whether the candidate passed every rule
func (d *Decision) Accepted() bool {
	return len(d.Rejections) == 0
}

// TemporarilyRejected reports whether the candidate was declined only by
// retryable rules, making it eligible for the pending queue
func (d *Decision) TemporarilyRejected() bool {
	if len(d.Rejections) == 0 {
		return false
	}
	for _, r := range d.Rejections {
		if r.Kind == Permanent {
			return false
		}
	}
	return true
}

// QueueItem is the view of an in-flight download the queue rule needs
type QueueItem struct {
	BookIDs        []uint64
	Quality        models.QualityModel
	FormatScore    int
	PendingRemoval bool // failed and awaiting removal; ignored by the queue rule
}

// QueueProvider supplies the active download queue for an author. Implemented
// by the tracked-download service.
type QueueProvider interface {
	QueueForAuthor(authorID uint64) []QueueItem
}

// Context carries the per-batch state the rules evaluate against. The profile
// is loaded once per batch by the caller and passed down; rules never load it
// themselves.
type Context struct {
	Profile       *models.QualityProfile
	MonitoredOnly bool
}

// Specification is one acceptance rule. Implementations are read-only with
// respect to candidate state and return nil to accept.
type Specification interface {
	Name() string
	Evaluate(remote *models.RemoteBook, ctx *Context) *Rejection
}
