/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rental management server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Initialize cache (Redis if configured, in-memory otherwise)
  4. Create API handler with dependencies
  5. Configure HTTP router and rate limiter
  6. Start billing scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port             HTTP server port (default: 8080)
  -db               SQLite database path (default: rentengine.db)
                    Use ":memory:" for in-memory database
  -redis            Redis address for the dashboard cache (optional;
                    in-memory cache when empty)
  -cron-secret      Bearer token required by /api/cron/charges
                    (empty disables the check; dev only)
  -billing-interval How often the internal scheduler bills the current
                    month (default: 12h; 0 disables the scheduler)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop scheduler and rate limiter
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/rentengine.db" -cron-secret="s3cret"

  # Run with in-memory database and Redis cache
  ./server -db=":memory:" -redis="localhost:6379"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proyectohouse/rent-engine/api"
	"github.com/proyectohouse/rent-engine/cache"
	"github.com/proyectohouse/rent-engine/logger"
	"github.com/proyectohouse/rent-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "rentengine.db", "SQLite database path")
	redisAddr := flag.String("redis", "", "Redis address for the dashboard cache (empty = in-memory)")
	cronSecret := flag.String("cron-secret", "", "Bearer token for /api/cron/charges")
	billingInterval := flag.Duration("billing-interval", 12*time.Hour, "internal billing scheduler interval (0 disables)")
	flag.Parse()

	log := logger.New()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Initialize cache
	var c cache.Cache
	if *redisAddr != "" {
		c = cache.NewRedis(*redisAddr)
		log.Info().Str("addr", *redisAddr).Msg("using redis cache")
	} else {
		c = cache.NewMemory()
	}

	// Initialize handler and router
	handler := api.NewHandler(store, c, log, *cronSecret)
	if *cronSecret == "" {
		log.Warn().Msg("cron secret is empty, /api/cron/charges is unauthenticated")
	}

	limiter := api.NewRateLimiter(120, time.Minute)
	defer limiter.Stop()

	router := api.NewRouter(handler, limiter)

	// Billing scheduler
	scheduler := api.NewBillingScheduler(handler, log)
	if *billingInterval > 0 {
		scheduler.CheckInterval = *billingInterval
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
