// Package server assembles the HTTP API: routing, auth, rate limiting,
// security headers, the websocket hub, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/Knuckles92/obby-sub000/internal/config"
	"github.com/Knuckles92/obby-sub000/internal/engine"
	"github.com/Knuckles92/obby-sub000/internal/services"
	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/internal/vault"
	"github.com/Knuckles92/obby-sub000/pkg/types"
	"github.com/Knuckles92/obby-sub000/web/handlers"
)

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with
// port 0) and the websocket hub. The scheduler's progress callback is wired
// to the hub here, so Start must run before the scheduler's polling loop.
// The server shuts down when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, store storage.Store, scheduler *engine.Scheduler, scanner *vault.Scanner) (string, *handlers.WebSocketHub) {
	mux := http.NewServeMux()

	wsHub := handlers.NewWebSocketHub(originPatterns(cfg)...)
	go wsHub.Run()

	scheduler.SetProgressCallback(func(stage string, summary *types.RunSummary) {
		wsHub.Broadcast(handlers.Event{Type: stage, Summary: summary})
	})

	// Rate limiter (10 req/sec, burst of 20)
	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	insightService := services.NewInsightService(store, store)
	contextService := services.NewContextService(engine.NewContextBuilder(store, store, store), store)

	insightHandlers := handlers.NewInsightHandlers(insightService)
	processingHandlers := handlers.NewProcessingHandlers(scheduler)
	contextHandlers := handlers.NewContextHandlers(contextService)
	vaultHandlers := handlers.NewVaultHandlers(scanner, wsHub)
	statsHandler := handlers.NewStatsHandler(insightService)

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/insights", insightHandlers.ListInsights)
	apiMux.HandleFunc("/api/insights/{id}", insightHandlers.GetInsight)
	apiMux.HandleFunc("/api/insights/{id}/action", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			insightHandlers.PostInsightAction(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/stats", statsHandler.GetStats)
	apiMux.HandleFunc("/api/processing/trigger", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			processingHandlers.TriggerProcessing(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/processing/status", processingHandlers.GetProcessingStatus)
	apiMux.HandleFunc("/api/processing/config", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			processingHandlers.GetProcessingConfig(w, r)
		case http.MethodPut:
			processingHandlers.PutProcessingConfig(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/context", contextHandlers.GetContext)
	apiMux.HandleFunc("/api/context/config", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			contextHandlers.GetContextConfig(w, r)
		case http.MethodPut:
			contextHandlers.PutContextConfig(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/vault/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			vaultHandlers.PostScan(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Health endpoint. No auth required; used by monitoring and the CLI.
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","version":"0.1.0"}`))
	})

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required; origin validation handles security)
	mux.Handle("/ws", wsHub)

	// Wrap entire server with rate limiting, then security headers
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = handlers.SecurityHeaders(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub
}

// originPatterns lists the browser origins allowed to open websocket
// connections: the localhost forms of the configured port, plus the
// configured host when it is a real name.
func originPatterns(cfg *config.Config) []string {
	patterns := []string{
		fmt.Sprintf("localhost:%d", cfg.Server.Port),
		fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
	}
	host := cfg.Server.Host
	if host != "" && host != "localhost" && host != "127.0.0.1" && host != "0.0.0.0" {
		patterns = append(patterns, fmt.Sprintf("%s:%d", host, cfg.Server.Port))
	}
	return patterns
}
