// Package server provides the HTTP server setup for go-contractseal.
//
// NewServer wires the file assembly service, the seal registry and the
// request middleware into an http.Server.
//
// Expected outputs:
// - Server listens on the configured port (default 8080)
// - Request metrics are exposed on /metrics
//
// Usage:
//
//	srv, err := server.NewServer(cfg, server.Deps{Files: files, Seals: registry})
//	srv.ListenAndServe()
//
// See internal/server/routes.go for route registration.
package server

import (
	"fmt"
	"net/http"
	"time"

	"go-contractseal/internal/assembly"
	"go-contractseal/internal/config"
	"go-contractseal/internal/handlers"
	mw "go-contractseal/internal/middleware"
	"go-contractseal/internal/seals"
	"go-contractseal/internal/validation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Deps are the long-lived components the routes serve.
type Deps struct {
	Files    *assembly.Service
	Seals    *seals.Registry
	Log      *logrus.Logger
	Registry *prometheus.Registry
}

type Server struct {
	port     int
	handler  *handlers.APIHandler
	log      *logrus.Logger
	registry *prometheus.Registry
	requests *mw.Prometheus
}

func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Log == nil {
		deps.Log = logrus.New()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	v, err := validation.New()
	if err != nil {
		return nil, fmt.Errorf("compile request schemas: %w", err)
	}
	requests, err := mw.NewPrometheus(deps.Registry)
	if err != nil {
		return nil, fmt.Errorf("register request metrics: %w", err)
	}
	return &Server{
		port:     cfg.Port,
		handler:  handlers.NewAPIHandler(deps.Files, deps.Seals, v, cfg.MaxUploadMB<<20, deps.Log),
		log:      deps.Log,
		registry: deps.Registry,
		requests: requests,
	}, nil
}

func NewServer(cfg *config.Config, deps Deps) (*http.Server, error) {
	srv, err := New(cfg, deps)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return server, nil
}
