package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"rag-assistant/internal/models"
	"rag-assistant/internal/services"
)

// SearchHandler handles HTTP requests for retrieval operations.
type SearchHandler struct {
	retrievalService *services.RetrievalService
	answerService    *services.AnswerService
	collection       string
	userNamespacing  bool
	logger           *log.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(retrievalService *services.RetrievalService, answerService *services.AnswerService, collection string, userNamespacing bool, logger *log.Logger) *SearchHandler {
	return &SearchHandler{
		retrievalService: retrievalService,
		answerService:    answerService,
		collection:       collection,
		userNamespacing:  userNamespacing,
		logger:           logger,
	}
}

// SearchRequestBody is the JSON body for search requests.
type SearchRequestBody struct {
	Query        string   `json:"query"`
	Collection   string   `json:"collection,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	TopK         int      `json:"top_k,omitempty"`
	VectorWeight float64  `json:"vector_weight,omitempty"`
	FuzzyWeight  float64  `json:"fuzzy_weight,omitempty"`
	Strategies   []string `json:"strategies,omitempty"`
}

// SearchResponse is the JSON body for search results.
type SearchResponse struct {
	Query   string                    `json:"query"`
	Mode    string                    `json:"mode"`
	Results []*models.RetrievedResult `json:"results"`
	Count   int                       `json:"count"`
}

// Search runs a retrieval query
// @Summary Search documents
// @Description Retrieve ranked chunks by vector, fuzzy or hybrid search
// @Tags search
// @Accept json
// @Produce json
// @Param request body SearchRequestBody true "Search request"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/search [post]
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	h.logger.Printf("Search request from %s", r.RemoteAddr)

	var reqBody SearchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.logger.Printf("Failed to decode request: %v", err)
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if reqBody.Query == "" {
		h.sendError(w, http.StatusBadRequest, "Query is required")
		return
	}

	collection := h.resolveCollection(r, reqBody.Collection)
	mode := reqBody.Mode
	if mode == "" {
		mode = "hybrid"
	}

	var results []*models.RetrievedResult
	var err error
	switch mode {
	case "vector":
		results, err = h.retrievalService.VectorSearch(r.Context(), collection, reqBody.Query, reqBody.TopK, reqBody.Strategies)
	case "fuzzy":
		results, err = h.retrievalService.FuzzySearch(r.Context(), collection, reqBody.Query, reqBody.TopK)
	case "hybrid":
		results, err = h.retrievalService.HybridSearch(r.Context(), collection, reqBody.Query, reqBody.TopK,
			reqBody.VectorWeight, reqBody.FuzzyWeight, reqBody.Strategies)
	default:
		h.sendError(w, http.StatusBadRequest, "Unknown search mode: "+mode)
		return
	}
	if err != nil {
		h.logger.Printf("Search failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.sendJSON(w, http.StatusOK, SearchResponse{
		Query:   reqBody.Query,
		Mode:    mode,
		Results: results,
		Count:   len(results),
	})
}

// CompareRequestBody is the JSON body for strategy comparison requests.
type CompareRequestBody struct {
	Query      string `json:"query"`
	Collection string `json:"collection,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
}

// Compare scores retrieval modes against each other
// @Summary Compare retrieval strategies
// @Description Run vector, fuzzy and hybrid retrieval for one query and report the best
// @Tags search
// @Accept json
// @Produce json
// @Param request body CompareRequestBody true "Comparison request"
// @Success 200 {object} services.StrategyComparison
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/search/compare [post]
func (h *SearchHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var reqBody CompareRequestBody
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if reqBody.Query == "" {
		h.sendError(w, http.StatusBadRequest, "Query is required")
		return
	}

	collection := h.resolveCollection(r, reqBody.Collection)
	comparison, err := h.answerService.CompareStrategies(r.Context(), collection, reqBody.Query, reqBody.TopK)
	if err != nil {
		h.logger.Printf("Strategy comparison failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.sendJSON(w, http.StatusOK, comparison)
}

func (h *SearchHandler) resolveCollection(r *http.Request, requested string) string {
	if username := UsernameFromContext(r.Context()); h.userNamespacing && username != "" {
		return services.UserCollection(username)
	}
	if requested != "" {
		return requested
	}
	return h.collection
}

func (h *SearchHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *SearchHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}
