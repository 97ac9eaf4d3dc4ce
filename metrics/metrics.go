// SPDX-FileCopyrightText: 2025 The rpki-client Authors
//
// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus counters for RPKI object validation
// attempts, grounded on the signatureCount/signErrorCount/certificates
// counter-vec pattern used by the CA issuance path of a comparable
// certificate-issuing codebase in this corpus. It is an ambient
// observability concern SPEC_FULL.md calls out as optional (wired behind
// the CLI's -metrics-addr flag, never required for validate to function).
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ObjectKind labels a counter by the RPKI object type it was recorded for.
type ObjectKind string

const (
	ObjectCert ObjectKind = "cer"
	ObjectMft  ObjectKind = "mft"
	ObjectRoa  ObjectKind = "roa"
	ObjectTal  ObjectKind = "tal"
)

// Metrics holds the counters shared across every object parser invoked by
// the CLI's validate command.
type Metrics struct {
	parseAttempts *prometheus.CounterVec
	parseFailures *prometheus.CounterVec
}

// New constructs Metrics and registers its counters against reg.
func New(reg prometheus.Registerer) *Metrics {
	parseAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpki_client_parse_attempts_total",
			Help: "Number of RPKI object parse attempts, by object kind",
		},
		[]string{"kind"})
	reg.MustRegister(parseAttempts)

	parseFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpki_client_parse_failures_total",
			Help: "Number of RPKI object parse failures, by object kind and failure reason",
		},
		[]string{"kind", "reason"})
	reg.MustRegister(parseFailures)

	return &Metrics{parseAttempts: parseAttempts, parseFailures: parseFailures}
}

// ObserveAttempt increments the attempt counter for kind.
func (m *Metrics) ObserveAttempt(kind ObjectKind) {
	if m == nil {
		return
	}
	m.parseAttempts.With(prometheus.Labels{"kind": string(kind)}).Inc()
}

// ObserveFailure increments the failure counter for kind, labelled with
// reason (typically a FailureKind.String() value).
func (m *Metrics) ObserveFailure(kind ObjectKind, reason string) {
	if m == nil {
		return
	}
	m.parseFailures.With(prometheus.Labels{"kind": string(kind), "reason": reason}).Inc()
}

// Serve starts an HTTP server exposing the registered counters at /metrics
// on addr. It blocks until ctx is cancelled, then shuts the server down.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
