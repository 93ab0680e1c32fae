package main

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeycumines/go-fibersched/sched"
)

// startMetrics serves the collector for s on /metrics, returning the bound
// address.
func (a *app) startMetrics(addr, namespace string, s *sched.Scheduler) (*http.Server, net.Addr, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(sched.NewCollector(s, namespace)); err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(`/metrics`, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen(`tcp`, addr)
	if err != nil {
		return nil, nil, err
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Err().Err(err).Log(`metrics server failed`)
		}
	}()

	return srv, ln.Addr(), nil
}
