package main

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-topology/internal/api/middleware"
	"github.com/kubilitics/kubilitics-topology/internal/api/rest"
	"github.com/kubilitics/kubilitics-topology/internal/api/websocket"
	"github.com/kubilitics/kubilitics-topology/internal/config"
	"github.com/kubilitics/kubilitics-topology/internal/repository"
	"github.com/kubilitics/kubilitics-topology/internal/service"
)

// newRouter assembles the HTTP surface: health, metrics, the REST API and
// the per-view websocket, wrapped in the middleware chain and CORS.
func newRouter(ctx context.Context, cfg *config.Config, views service.ViewService, hub *websocket.Hub, repo repository.TopologyRepository, log *zap.Logger) http.Handler {
	router := mux.NewRouter()

	var db rest.Pinger
	if repo != nil {
		db = repo
	}
	rest.SetupHealthRoutes(router, rest.NewHealthzHandler(db))
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))
	rest.SetupRoutes(api, rest.NewHandler(views, log))

	websocket.SetupRoutes(router, websocket.NewHandler(ctx, hub, views, cfg.AllowedOrigins))

	limiter := middleware.NewRateLimiter(cfg.RateLimitGetPerMin, cfg.RateLimitWritePerMin)
	router.Use(
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Tracing,
		middleware.StructuredLog(log),
		middleware.SecureHeaders,
		limiter.Middleware,
	)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "If-None-Match", middleware.ResponseRequestIDHeader, "traceparent"},
		ExposedHeaders:   []string{"ETag", "Location", middleware.ResponseRequestIDHeader, middleware.TraceIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(router)
}
