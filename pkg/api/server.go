// Package api TickDB REST API
//
// @title           TickDB REST API
// @version         1.0.0
// @description     REST API for TickDB, a chunked time-series store for market ticks.
// @host            localhost:8080
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in              header
// @name            X-API-Key
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMetricsInterval = 30 * time.Second
	shutdownTimeout        = 10 * time.Second
)

const swaggerUI = `<!DOCTYPE html>
<html>
<head>
	<title>TickDB API Documentation</title>
	<link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui.css" />
</head>
<body>
	<div id="swagger-ui"></div>
	<script src="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui-bundle.js"></script>
	<script>
	  window.onload = function() {
	    SwaggerUIBundle({
	      url: '/swagger/swagger.json',
	      dom_id: '#swagger-ui',
	      presets: [
	        SwaggerUIBundle.presets.apis,
	        SwaggerUIBundle.presets.standalone
	      ]
	    });
	  };
	</script>
</body>
</html>`

// NewRouter builds the HTTP handler with all routes configured
func NewRouter(server *Server, gatherer prometheus.Gatherer) http.Handler {
	metrics := server.metrics

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(requireAPIKey(server.config.APIKey)))

		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))

		// Ticks
		r.Post("/ticks", metrics.InstrumentHandler("POST", "/api/v1/ticks", server.handleIngest))
		r.Get("/ticks/{market}/{code}", metrics.InstrumentHandler("GET", "/api/v1/ticks/{market}/{code}", server.handleQuery))
		r.Get("/ticks/{market}/{code}/summary", metrics.InstrumentHandler("GET", "/api/v1/ticks/{market}/{code}/summary", server.handleSummary))
		r.Get("/ticks/{market}/{code}/stream", metrics.InstrumentHandler("GET", "/api/v1/ticks/{market}/{code}/stream", server.handleStream))

		// Series and chunks
		r.Get("/series", metrics.InstrumentHandler("GET", "/api/v1/series", server.handleListSeries))
		r.Get("/chunks/{market}/{code}", metrics.InstrumentHandler("GET", "/api/v1/chunks/{market}/{code}", server.handleListChunks))
		r.Delete("/chunks/{market}/{code}/{base}", metrics.InstrumentHandler("DELETE", "/api/v1/chunks/{market}/{code}/{base}", server.handleDeleteChunk))

		// Diagnostics
		r.Post("/codec/encode", metrics.InstrumentHandler("POST", "/api/v1/codec/encode", server.handleEncode))
		r.Get("/stats", metrics.InstrumentHandler("GET", "/api/v1/stats", server.handleStats))
	})

	r.Get("/swagger/*", server.handleSwagger)

	return r
}

// handleSwagger serves the swagger UI and the generated document
func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/swagger/", "/swagger/index.html":
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerUI))
	case "/swagger/swagger.json":
		doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
		if err != nil {
			s.logger.Error("failed to generate swagger doc", "error", err)
			http.Error(w, "Failed to generate Swagger documentation", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	default:
		http.NotFound(w, r)
	}
}

// StartServer runs the HTTP server until ctx is cancelled, then shuts it down
func StartServer(ctx context.Context, store TickStore, config ServerConfig) error {
	reg := config.Registerer
	gatherer := prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	addr := net.JoinHostPort(config.Bind, strconv.Itoa(config.Port))
	SwaggerInfo.Host = addr

	metrics := NewMetrics(reg)
	server := NewServer(store, config, metrics)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(server, gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Hijacked stream connections outlive Shutdown unless the hub ends them.
	httpServer.RegisterOnShutdown(server.hub.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		server.startMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		server.logger.Info("starting TickDB REST API server", "addr", addr, "metrics", fmt.Sprintf("http://%s/metrics", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		server.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
