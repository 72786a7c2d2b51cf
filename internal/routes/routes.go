package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"rag-assistant/internal/handlers"
)

// Handlers bundles the application's HTTP handlers for registration.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Chat      *handlers.ChatHandler
	Search    *handlers.SearchHandler
	Documents *handlers.DocumentHandler

	// AuthEnabled gates the session middleware on the API routes.
	AuthEnabled bool
}

// RegisterRoutes sets up all application routes.
func RegisterRoutes(router *mux.Router, h *Handlers) {
	// Health endpoints
	router.HandleFunc("/health", handlers.HealthCheckHandler).Methods(http.MethodGet)
	router.HandleFunc("/", handlers.HomeHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Auth endpoints stay outside the session middleware.
	if h.Auth != nil {
		api.HandleFunc("/auth/register", h.Auth.Register).Methods(http.MethodPost)
		api.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost)
		api.HandleFunc("/auth/logout", h.Auth.Logout).Methods(http.MethodPost)
		api.HandleFunc("/auth/me", h.Auth.Me).Methods(http.MethodGet)
	}

	protected := api.NewRoute().Subrouter()
	if h.AuthEnabled && h.Auth != nil {
		protected.Use(h.Auth.RequireSession)
	}

	// Chat
	protected.HandleFunc("/chat", h.Chat.Chat).Methods(http.MethodPost)
	protected.HandleFunc("/chat/{session_id}/history", h.Chat.History).Methods(http.MethodGet)

	// Search
	protected.HandleFunc("/search", h.Search.Search).Methods(http.MethodPost)
	protected.HandleFunc("/search/compare", h.Search.Compare).Methods(http.MethodPost)

	// Documents
	protected.HandleFunc("/documents", h.Documents.List).Methods(http.MethodGet)
	protected.HandleFunc("/documents/upload", h.Documents.Upload).Methods(http.MethodPost)
	protected.HandleFunc("/documents/scrape", h.Documents.Scrape).Methods(http.MethodPost)
	protected.HandleFunc("/collections/{name}/stats", h.Documents.Stats).Methods(http.MethodGet)
	protected.HandleFunc("/jobs/{id}", h.Documents.JobStatus).Methods(http.MethodGet)
}
