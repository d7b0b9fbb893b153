package metrics

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgrestmock_operations_total",
			Help: "Total number of mock backend operations by schema, table and operation kind",
		},
		[]string{"schema", "table", "operation"},
	)

	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgrestmock_operation_errors_total",
			Help: "Total number of failed operations by error code",
		},
		[]string{"code"},
	)

	HandlerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgrestmock_handler_invocations_total",
			Help: "Total number of registered RPC/edge handler invocations by kind and name",
		},
		[]string{"kind", "name"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgrestmock_operation_duration_seconds",
			Help:    "Duration of mock backend operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

type PromServerOpts struct {
	Addr              string
	Path              string        // Path for metrics endpoint, defaults to "/metrics"
	ShutdownTimeout   time.Duration // Timeout for server shutdown, defaults to 5 seconds
	ReadHeaderTimeout time.Duration // Timeout for reading request headers, defaults to 3 seconds
}

func defaultPrometheusServerOptions() PromServerOpts {
	return PromServerOpts{
		Addr:              ":9100",
		Path:              "/metrics",
		ShutdownTimeout:   5 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// StartPrometheusServer starts a Prometheus metrics server with the given options.
// The server gracefully shuts down when the provided context is canceled.
func StartPrometheusServer(ctx context.Context, wg *sync.WaitGroup, opts *PromServerOpts) {
	effectiveOpts := defaultPrometheusServerOptions()
	if opts != nil {
		if opts.Addr != "" {
			effectiveOpts.Addr = opts.Addr
		}
		if opts.Path != "" {
			effectiveOpts.Path = opts.Path
		}
		if opts.ShutdownTimeout != 0 {
			effectiveOpts.ShutdownTimeout = opts.ShutdownTimeout
		}
		if opts.ReadHeaderTimeout != 0 {
			effectiveOpts.ReadHeaderTimeout = opts.ReadHeaderTimeout
		}
	}

	mux := http.NewServeMux()
	mux.Handle(effectiveOpts.Path, promhttp.Handler())
	server := &http.Server{
		Addr:              effectiveOpts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: effectiveOpts.ReadHeaderTimeout,
	}

	serverClosed := make(chan struct{})

	wg.Add(1)

	go func() {
		defer wg.Done()
		log.Printf("Starting Prometheus metrics server on %s", effectiveOpts.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
		close(serverClosed)
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), effectiveOpts.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down metrics server: %v", err)
		}

		select {
		case <-serverClosed:
			log.Println("Metrics server shutdown complete")
		case <-shutdownCtx.Done():
			log.Println("Metrics server shutdown timed out")
		}
	}()
}
