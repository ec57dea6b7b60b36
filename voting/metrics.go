package voting

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vocdoni/zkvote-node/metrics"
)

// Voting collectors
var (
	VotesCast = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zkvote",
		Name:      "votes_cast_total",
		Help:      "Votes committed to the ledger",
	})
	VotesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkvote",
		Name:      "votes_rejected_total",
		Help:      "Vote requests rejected, by gate",
	}, []string{"gate"})
	VotesTransferred = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zkvote",
		Name:      "votes_transferred_total",
		Help:      "Votes moved between candidates by administrative transfers",
	})
	ProofVerifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "zkvote",
		Name:      "proof_verify_seconds",
		Help:      "Time spent verifying vote proofs",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	})
)

var registerOnce sync.Once

// RegisterMetrics registers the voting collectors in the default prometheus
// registry. It is safe to call it more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		metrics.Register(VotesCast, VotesRejected, VotesTransferred, ProofVerifyDuration)
	})
}
