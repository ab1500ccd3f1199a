// Track service: background collector plus the historical track API.
//
// The collector polls the feeder every few seconds and writes positions into
// the archive; the API serves bulk timelapse windows, per-aircraft trails
// and a live snapshot feed to viewer clients on the LAN.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tracklapse/tracklapse/internal/collector"
	"github.com/tracklapse/tracklapse/internal/db"
	"github.com/tracklapse/tracklapse/pkg/config"
	"github.com/tracklapse/tracklapse/pkg/military"
)

const serviceVersion = "1.0.0"

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	flag.Parse()

	log.Println("===========================================")
	log.Println("  Tracklapse Track Service")
	log.Println("===========================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Configuration loaded from: %s", *configPath)
	log.Printf("Feeder: %s (interval: %ds)", cfg.Feeder.URL, cfg.Feeder.PollIntervalSeconds)

	// Connect to database, waiting out a slow-starting container.
	database, err := db.ReconnectWithRetry(cfg.Database, 10, 2*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	log.Println("Database schema initialized")

	repo := db.NewTrackRepository(database)

	militaryURL := cfg.Military.DatabaseURL
	if militaryURL == "" {
		militaryURL = military.DefaultDatabaseURL
	}
	militaryDB := military.New(militaryURL)

	feeder := collector.NewFeederClient(cfg.Feeder.URL,
		time.Duration(cfg.Feeder.TimeoutSeconds)*time.Second)
	coll := collector.New(repo, feeder, militaryDB,
		time.Duration(cfg.Feeder.PollIntervalSeconds)*time.Second)

	hub := newLiveHub()
	coll.OnSnapshot(func(s *collector.FeederSnapshot) {
		hub.Broadcast(s)
	})

	go coll.Run(ctx)
	log.Println("Background collector started")

	srv := &Server{
		router:    chi.NewRouter(),
		archive:   repo,
		collector: coll,
		hub:       hub,
		dbHealthy: func() bool { return db.HealthCheck(database) },
	}
	srv.setupRoutes()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("API listening on http://%s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))

	// LAN only, no authentication: open CORS for the viewer clients.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/tracks/bulk/timelapse", s.handleBulkTimelapse)
	r.Get("/tracks/{icao}", s.handleAircraftTrail)
	r.Get("/aircraft/unique", s.handleUniqueAircraft)
	r.Get("/stats/summary", s.handleStatsSummary)
	r.Get("/live/aircraft", s.handleLiveAircraft)
	r.Get("/ws/live", s.handleLiveWS)
}
