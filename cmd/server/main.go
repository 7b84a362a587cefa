package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ragchat-backend/internal/api"
	"ragchat-backend/internal/config"
	"ragchat-backend/internal/handlers"
	"ragchat-backend/internal/integrations/rag"
	"ragchat-backend/internal/services"
	"ragchat-backend/internal/store"
	"ragchat-backend/internal/store/postgres"
	"ragchat-backend/internal/store/sqlite"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	log.Println("Starting RAG Chat Backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Open the conversation store
	convStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("FATAL: Unable to open %s store: %v", cfg.StoreDriver, err)
	}
	defer convStore.Close()

	// 3. Initialize Dependencies (Responder, Services, Handlers)
	var responder services.Responder
	if cfg.RAGEndpointURL != "" {
		responder = rag.NewClient(cfg.RAGEndpointURL, cfg.RAGTopK, cfg.RAGTimeout)
		log.Printf("RAG client initialized for %s (k=%d).", cfg.RAGEndpointURL, cfg.RAGTopK)
	} else {
		log.Println("WARN: RAG_ENDPOINT_URL is empty, the ask endpoint will answer 503.")
	}

	chatService := services.NewChatService(convStore, responder)
	log.Println("ChatService initialized.")

	conversationHandler := handlers.NewConversationHandlers(chatService)
	log.Println("ConversationHandler initialized.")

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		ConversationHandler: conversationHandler,
		Config:              cfg,
	})
	log.Println("HTTP router configured.")

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// Writes must outlast the per-request timeout so its 504 reaches the client.
		ReadTimeout:  5 * time.Second,
		WriteTimeout: api.RequestTimeout(cfg) + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel to listen for OS signals for graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
	}

	log.Println("Server shutdown complete.")
}

// openStore connects the backend selected by STORE_DRIVER.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dbCancel()

		dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := dbpool.Ping(dbCtx); err != nil {
			dbpool.Close()
			return nil, err
		}
		log.Println("Database connection pool established and pinged successfully.")

		pgStore := postgres.NewPostgresStore(dbpool)
		if err := pgStore.Migrate(dbCtx); err != nil {
			pgStore.Close()
			return nil, err
		}
		log.Println("Postgres store initialized.")
		return pgStore, nil
	default:
		sqliteStore, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Println("SQLite store initialized.")
		return sqliteStore, nil
	}
}
