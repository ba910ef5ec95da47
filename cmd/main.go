// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rakapradipta/blood-donor-registration/internal/database"
	"github.com/rakapradipta/blood-donor-registration/internal/handler"
	"github.com/rakapradipta/blood-donor-registration/internal/notify"
	"github.com/rakapradipta/blood-donor-registration/internal/repository"
	"github.com/rakapradipta/blood-donor-registration/internal/service"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// ── 1. Pick the store: PostgreSQL by default, in-memory for demos ─────
	var (
		events      service.EventStore
		registrants service.RegistrantStore
	)

	if getEnv("STORE", "postgres") == "memory" {
		mem := repository.NewMemoryStore()
		events, registrants = mem, mem
		log.Println("✓ Using in-memory store (registrations are not durable)")
	} else {
		cfg := database.ConfigFromEnv()
		if err := database.RunMigrations(cfg); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		pool, err := database.NewPool(ctx, cfg)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer pool.Close()
		log.Println("✓ Connected to PostgreSQL")

		events = repository.NewEventRepository(pool)
		registrants = repository.NewRegistrantRepository(pool)
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	dispatcher := notify.ClientFromEnv(logger)
	svc := service.NewRegistrationService(
		events, registrants,
		notify.TemplateGenerator{}, dispatcher,
		logger,
	)
	h := handler.NewRegistrationHandler(svc)

	if getEnv("SEED_DEFAULTS", "true") == "true" {
		n, err := svc.SeedDefaults(ctx)
		if err != nil {
			log.Fatalf("seed defaults: %v", err)
		}
		if n > 0 {
			log.Printf("✓ Seeded %d default events", n)
		}
	}

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(chimiddleware.Logger)    // access log
	r.Use(handler.CORS)            // the form may be hosted elsewhere

	r.Get("/health", handler.HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Post("/{id}/register", h.Register)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(handler.AdminAuth(os.Getenv("ADMIN_TOKEN")))
		r.Post("/events", h.CreateEvent)
		r.Put("/events/{id}/capacity", h.SetCapacity)
		r.Get("/registrants", h.ListRegistrants)
		r.Get("/registrants/export", h.ExportRegistrants)
		r.Post("/reset", h.ResetAll)
		r.Post("/seed", h.Seed)
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
