package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"rag-assistant/internal/db"
	"rag-assistant/internal/handlers"
	"rag-assistant/internal/repositories"
	"rag-assistant/internal/routes"
	"rag-assistant/internal/services"
	"rag-assistant/internal/workers"
)

// Config holds the server's environment-driven settings.
type Config struct {
	Port             int
	ComputeURL       string
	LLMURL           string
	LLMModel         string
	LLMMaxTokens     int
	LLMTemperature   float64
	Collection       string
	MemoryCollection string

	// Feature flags replacing the per-deployment UI variants.
	AuthEnabled     bool
	ScrapingEnabled bool
	UserNamespacing bool
}

// LoadConfig reads the server configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:             envInt("PORT", 8080),
		ComputeURL:       envString("COMPUTE_URL", "http://localhost:8000"),
		LLMURL:           envString("LLM_URL", "http://localhost:1234"),
		LLMModel:         envString("LLM_MODEL", services.DefaultLLMModel),
		LLMMaxTokens:     envInt("LLM_MAX_TOKENS", services.DefaultLLMMaxTokens),
		LLMTemperature:   envFloat("LLM_TEMPERATURE", services.DefaultLLMTemperature),
		Collection:       envString("DEFAULT_COLLECTION", "documents"),
		MemoryCollection: envString("MEMORY_COLLECTION", "conversation_memory"),
		AuthEnabled:      envBool("AUTH_ENABLED", false),
		ScrapingEnabled:  envBool("SCRAPING_ENABLED", true),
		UserNamespacing:  envBool("USER_NAMESPACING", false),
	}
}

// NewServer wires the application: clients, repositories, services, handlers
// and the background worker. Unreachable stores fail startup visibly.
func NewServer() (*http.Server, error) {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)
	config := LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Redis
	redisConfig := getRedisConfig()
	logger.Printf("Connecting to Redis: %s:%d (DB: %d)", redisConfig.Host, redisConfig.Port, redisConfig.DB)
	redisClient, err := db.NewRedisClient(redisConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}
	if err := redisClient.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	// Qdrant
	qdrantConfig := getQdrantConfig()
	logger.Printf("Connecting to Qdrant: %s:%d", qdrantConfig.Host, qdrantConfig.Port)
	qdrantClient := db.NewQdrantClient(qdrantConfig)
	if err := qdrantClient.Healthz(ctx); err != nil {
		return nil, fmt.Errorf("qdrant connection failed: %w", err)
	}

	// Repositories
	vectorRepo := repositories.NewQdrantVectorRepository(qdrantClient)
	userRepo := repositories.NewRedisUserRepository(redisClient.GetClient())
	jobRepo := repositories.NewRedisJobRepository(redisClient.GetClient())

	// Services
	compute := services.NewComputeClient(config.ComputeURL)
	chunker := services.NewChunkerService(log.New(os.Stdout, "[CHUNKER] ", log.LstdFlags))
	scraper := services.NewScraperService(log.New(os.Stdout, "[SCRAPER] ", log.LstdFlags))
	generator := services.NewLLMService(config.LLMURL, config.LLMModel, config.LLMMaxTokens, config.LLMTemperature)

	serviceLogger := log.New(os.Stdout, "[RAG] ", log.LstdFlags)
	retrieval := services.NewRetrievalService(vectorRepo, compute, serviceLogger)
	memory := services.NewMemoryService(vectorRepo, compute, userRepo, serviceLogger)
	answer := services.NewAnswerService(retrieval, memory, generator, serviceLogger)
	indexing := services.NewIndexingService(chunker, compute, vectorRepo, jobRepo, scraper, serviceLogger)

	var authService *services.AuthService
	var authHandler *handlers.AuthHandler
	if config.AuthEnabled {
		authService = services.NewAuthService(userRepo, log.New(os.Stdout, "[AUTH] ", log.LstdFlags))
		authHandler = handlers.NewAuthHandler(authService, logger)
		logger.Println("Auth enabled")
	}

	// Background worker for async indexing
	worker := workers.NewIndexWorker(workers.DefaultIndexWorkerConfig(), jobRepo, indexing,
		log.New(os.Stdout, "[WORKER] ", log.LstdFlags))
	if err := worker.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to start index worker: %w", err)
	}

	h := &routes.Handlers{
		Auth: authHandler,
		Chat: handlers.NewChatHandler(answer, memory, config.Collection, config.MemoryCollection,
			config.UserNamespacing, logger),
		Search: handlers.NewSearchHandler(retrieval, answer, config.Collection,
			config.UserNamespacing, logger),
		Documents: handlers.NewDocumentHandler(indexing, authService, config.Collection,
			config.ScrapingEnabled, config.UserNamespacing, logger),
		AuthEnabled: config.AuthEnabled,
	}

	router := mux.NewRouter()
	routes.RegisterRoutes(router, h)

	// Swagger endpoints
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", config.Port)),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	logger.Printf("Server configured on :%d (scraping=%t namespacing=%t)",
		config.Port, config.ScrapingEnabled, config.UserNamespacing)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: corsMiddleware(router),
	}, nil
}

// corsMiddleware adds CORS headers to all responses.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getRedisConfig reads Redis configuration from environment variables.
func getRedisConfig() db.RedisConfig {
	config := db.DefaultRedisConfig()
	if host := os.Getenv("REDIS_HOST"); host != "" {
		config.Host = host
	}
	if portStr := os.Getenv("REDIS_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Port = port
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Password = password
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if dbNum, err := strconv.Atoi(dbStr); err == nil {
			config.DB = dbNum
		}
	}
	return config
}

// getQdrantConfig reads Qdrant configuration from environment variables.
func getQdrantConfig() db.QdrantConfig {
	config := db.DefaultQdrantConfig()
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		config.Host = host
	}
	if portStr := os.Getenv("QDRANT_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Port = port
		}
	}
	if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		config.APIKey = apiKey
	}
	return config
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
