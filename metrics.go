package main

import (
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adam-rumpf/social-transit-solver/internal/metrics"
)

// startMetricsServer registers the solver's collectors and serves them at
// /metrics on addr, alongside the live-profiling endpoints under
// /debug/pprof/ that a long-running search benefits from exposing on the
// same listener.
func startMetricsServer(addr string) {
	metrics.RegisterDefault()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	server := &http.Server{Addr: addr, Handler: mux}
	go server.ListenAndServe()
}
