// Package metrics exposes the node collectors to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vocdoni/zkvote-node/log"
)

// Register the provided prometheus collectors, ignoring any error returned (simply logs a Warn)
func Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := prometheus.Register(c); err != nil {
			log.Warnf("cannot register metrics: (%s) (%+v)", err, c)
		}
	}
}

// Handler returns the HTTP handler serving the registered collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}
