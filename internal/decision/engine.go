package decision

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/blocklist"
	"github.com/bookarr/bookarr/internal/history"
	"github.com/bookarr/bookarr/internal/metrics"
	"github.com/bookarr/bookarr/internal/models"
)

// Engine evaluates candidates against a fixed, explicitly ordered rule list.
// Rules are ordered cheap to expensive; evaluation short-circuits on the
// first rejection, but any rejection from any rule is authoritative.
type Engine struct {
	specs []Specification
	log   *logrus.Logger
}

// NewEngine builds the standard rule chain
func NewEngine(blocklistSvc *blocklist.Service, historySvc *history.Service, queue QueueProvider, grabWindow time.Duration, downloadPropers bool, log *logrus.Logger) *Engine {
	return &Engine{
		specs: []Specification{
			&indexerTagSpec{},
			&cutoffSpec{},
			&upgradeDiskSpec{},
			&queueSpec{queue: queue, downloadPropers: downloadPropers},
			&blocklistSpec{svc: blocklistSvc},
			&recentGrabSpec{history: historySvc, window: grabWindow},
		},
		log: log,
	}
}

// NewEngineWithSpecs builds an engine with an explicit rule list, used by
// tests and by callers that need a reduced chain
func NewEngineWithSpecs(log *logrus.Logger, specs ...Specification) *Engine {
	return &Engine{specs: specs, log: log}
}

// Evaluate produces the single decision for one candidate. A fault inside a
// rule must not abort the batch: it is converted into a temporary rejection
// and logged.
func (e *Engine) Evaluate(remote *models.RemoteBook, ctx *Context) *Decision {
	decision := &Decision{Remote: remote}

	if !remote.Mapped() {
		decision.Rejections = append(decision.Rejections, Rejection{
			Reason: "Unable to map release to a library author and book",
			Kind:   Permanent,
		})
		return decision
	}

	for _, spec := range e.specs {
		rejection := e.evaluateSpec(spec, remote, ctx)
		if rejection != nil {
			e.log.WithFields(logrus.Fields{
				"title":  remote.Release.Title,
				"rule":   spec.Name(),
				"reason": rejection.Reason,
				"kind":   rejection.Kind,
			}).Debug("Release rejected")
			metrics.RejectionsTotal.WithLabelValues(string(rejection.Kind)).Inc()

			decision.Rejections = append(decision.Rejections, *rejection)
			break
		}
	}

	return decision
}

// EvaluateAll produces one decision per candidate
func (e *Engine) EvaluateAll(remotes []*models.RemoteBook, ctx *Context) []*Decision {
	decisions := make([]*Decision, 0, len(remotes))
	for _, remote := range remotes {
		decisions = append(decisions, e.Evaluate(remote, ctx))
	}
	return decisions
}

func (e *Engine) evaluateSpec(spec Specification, remote *models.RemoteBook, ctx *Context) (rejection *Rejection) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{
				"rule":  spec.Name(),
				"title": remote.Release.Title,
				"panic": r,
			}).Error("Rule panicked during evaluation")
			rejection = &Rejection{Reason: "Release could not be evaluated", Kind: Temporary}
		}
	}()

	return spec.Evaluate(remote, ctx)
}
