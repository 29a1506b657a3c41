package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GrabsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookarr_grabs_total",
		Help: "Releases dispatched to a download client, by protocol.",
	}, []string{"protocol"})

	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookarr_rejections_total",
		Help: "Decision pipeline rejections, by kind.",
	}, []string{"kind"})

	ClientFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookarr_download_client_faults_total",
		Help: "Download client transport faults, by protocol.",
	}, []string{"protocol"})

	IndexerFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookarr_indexer_faults_total",
		Help: "Failed or timed-out indexer searches, by indexer.",
	}, []string{"indexer"})

	TrackedDownloads = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bookarr_tracked_downloads",
		Help: "Tracked downloads currently cached, by state.",
	}, []string{"state"})
)

// Handler exposes the default registry for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
