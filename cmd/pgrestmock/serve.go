package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/edgeflare/pgrestmock/pkg/httputil"
	mw "github.com/edgeflare/pgrestmock/pkg/httputil/middleware"
	"github.com/edgeflare/pgrestmock/pkg/metrics"
	"github.com/edgeflare/pgrestmock/pkg/rest"
	"github.com/edgeflare/pgrestmock/pkg/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock backend server",
	Long:  `Starts an HTTP server exposing the in-memory mock backend on the PostgREST wire protocol`,
	Run:   runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("serve.listenAddr", "l", "", "server listen address")
	f.String("serve.seed", "", "JSON seed file mapping schema.table to row arrays")
	f.String("serve.logLevel", "", "request log level (debug, info, none)")
	f.Bool("metrics.enabled", false, "expose Prometheus metrics")
	f.String("metrics.listenAddr", "", "metrics server listen address")

	viper.BindPFlags(f)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	if cfg == nil {
		log.Fatal("Configuration not loaded")
	}

	// flag overrides
	if addr := viper.GetString("serve.listenAddr"); addr != "" {
		cfg.Serve.ListenAddr = addr
	}
	if seed := viper.GetString("serve.seed"); seed != "" {
		cfg.Serve.Seed = seed
	}
	if viper.GetBool("metrics.enabled") {
		cfg.Metrics.Enabled = true
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	opts := []rest.Option{rest.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		opts = append(opts, rest.WithMetrics())
	}
	server := rest.NewServer(opts...)

	if cfg.Serve.Seed != "" {
		if err := seedStore(server.Store(), cfg.Serve.Seed); err != nil {
			log.Fatalf("Failed to seed store: %v", err)
		}
	}

	router := httputil.NewRouter()
	router.Use(mw.RequestID, mw.CORSWithOptions(nil))
	if cfg.Serve.LogLevel != "none" {
		router.Use(mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger}))
	}
	router.Handle("/", server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: cfg.Metrics.ListenAddr})
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Mock backend listening on %s", cfg.Serve.ListenAddr)
		if err := router.ListenAndServe(cfg.Serve.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	wg.Wait()

	log.Println("Server gracefully stopped")
}

// seedStore loads a JSON file mapping qualified table names to row arrays.
func seedStore(s *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var tables map[string][]store.Row
	if err := json.Unmarshal(data, &tables); err != nil {
		return err
	}
	for qualified, rows := range tables {
		schema, table, found := strings.Cut(qualified, ".")
		if !found {
			schema, table = rest.DefaultSchema, qualified
		}
		if len(rows) == 0 {
			continue
		}
		if _, err := s.Insert(schema, table, rows); err != nil {
			return err
		}
	}
	return nil
}
