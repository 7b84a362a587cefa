package api

import (
	"log"
	"net/http"
	"time"

	"ragchat-backend/internal/config"
	"ragchat-backend/internal/handlers"
	"ragchat-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	ConversationHandler *handlers.ConversationHandlers
	Config              *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout(deps.Config)))

	// --- CORS Configuration ---
	// Credentials are only allowed with an explicit origin list.
	origins := deps.Config.AllowedOrigins
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		if deps.Config.AuthEnabled() {
			r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))
		} else {
			log.Println("WARN: JWT_SECRET is empty, /v1 routes are served without authentication.")
		}
		r.Use(middleware.AllowContentType("application/json"))

		// --- Mount Conversation Routes ---
		if deps.ConversationHandler != nil {
			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", deps.ConversationHandler.HandleCreateConversation)
				r.Get("/", deps.ConversationHandler.HandleListConversations)
				r.Get("/{conversationID}", deps.ConversationHandler.HandleGetConversation)
				r.Delete("/{conversationID}", deps.ConversationHandler.HandleDeleteConversation)

				// Message APIs
				r.Post("/{conversationID}/messages", deps.ConversationHandler.HandleAddMessage)
				r.Put("/{conversationID}/messages/{index}", deps.ConversationHandler.HandleReplaceMessage)
				r.Post("/{conversationID}/ask", deps.ConversationHandler.HandleAsk)
			})
		} else {
			log.Println("WARN: ConversationHandler dependency is nil, skipping /v1/conversations routes.")
		}
	})

	return r
}

const (
	defaultRequestTimeout  = 60 * time.Second
	requestTimeoutHeadroom = 30 * time.Second
)

// RequestTimeout bounds each request. It outlasts the upstream answer wait.
func RequestTimeout(cfg *config.Config) time.Duration {
	if cfg.RAGTimeout <= 0 {
		return defaultRequestTimeout
	}
	return cfg.RAGTimeout + requestTimeoutHeadroom
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
