// Package server sets up the HTTP server and registers API routes for go-contractseal.
//
// RegisterRoutes returns an http.Handler with all API endpoints for contract
// files and seals.
//
// Expected outputs:
// - File endpoints are available under /api/files
// - Seal endpoints are available under /api/seals
// - Request id, logging, metrics, CORS and tracing middleware are enabled
package server

import (
	"encoding/json"
	"net"
	"net/http"

	_ "go-contractseal/docs"
	mw "go-contractseal/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Only allow requests from localhost to /swagger/*
func localhostOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, _ := net.SplitHostPort(r.RemoteAddr)
		if host != "127.0.0.1" && host != "::1" && host != "localhost" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(mw.Logger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(s.requests.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.With(localhostOnly).Get("/swagger/*", httpSwagger.WrapHandler)

	h := s.handler
	r.Route("/api/files", func(api chi.Router) {
		api.Post("/upload", h.UploadFiles)
		api.Post("/merge", h.MergeFiles)
		api.Post("/apply-seal", h.ApplySeal)
		api.Post("/rename", h.RenameFile)
		api.Get("/download/{id}", h.DownloadFile)
		api.Get("/preview/{id}", h.PreviewFile)
		api.Get("/view/{id}", h.ViewFile)
		api.Post("/compare", h.CompareFiles)
		api.Get("/list", h.ListFiles)
		api.Get("/export", h.ExportFiles)
	})
	r.Route("/api/seals", func(api chi.Router) {
		api.Get("/", h.ListSeals)
		api.Post("/", h.CreateSeal)
		api.Get("/{id}", h.GetSeal)
		api.Put("/{id}", h.UpdateSeal)
		api.Delete("/{id}", h.DeleteSeal)
		api.Get("/{id}/image", h.SealImage)
	})

	return otelhttp.NewHandler(r, "contractseal")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
