package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"rag-assistant/internal/models"
	"rag-assistant/internal/services"
)

// DocumentHandler handles HTTP requests for document ingestion.
type DocumentHandler struct {
	indexingService *services.IndexingService
	authService     *services.AuthService
	collection      string
	scrapingEnabled bool
	userNamespacing bool
	logger          *log.Logger
}

// NewDocumentHandler creates a new document handler. authService may be nil
// when auth is disabled; it is only used to record per-user manifests.
func NewDocumentHandler(indexingService *services.IndexingService, authService *services.AuthService, collection string, scrapingEnabled, userNamespacing bool, logger *log.Logger) *DocumentHandler {
	return &DocumentHandler{
		indexingService: indexingService,
		authService:     authService,
		collection:      collection,
		scrapingEnabled: scrapingEnabled,
		userNamespacing: userNamespacing,
		logger:          logger,
	}
}

// UploadResponse is the JSON body for accepted uploads.
type UploadResponse struct {
	Status string                `json:"status"`
	JobID  string                `json:"job_id,omitempty"`
	Result *services.IndexResult `json:"result,omitempty"`
}

// Upload indexes an uploaded document
// @Summary Upload a document
// @Description Upload and index a document under every chunking strategy
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file (.txt, .md, .pdf, .docx)"
// @Param collection formData string false "Collection name"
// @Param async formData bool false "Index in the background" default(false)
// @Success 200 {object} UploadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/documents/upload [post]
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	h.logger.Printf("Upload request from %s", r.RemoteAddr)

	// Max 100MB
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		h.logger.Printf("Failed to parse form: %v", err)
		h.sendError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	collection := h.resolveCollection(r, r.FormValue("collection"))
	async := false
	if asyncStr := r.FormValue("async"); asyncStr != "" {
		if parsed, err := strconv.ParseBool(asyncStr); err == nil {
			async = parsed
		}
	}

	if async {
		job, err := h.indexingService.EnqueueFileIndex(r.Context(), collection, header.Filename, content)
		if err != nil {
			h.handleIndexError(w, err)
			return
		}
		h.recordDocument(r, header.Filename)
		h.sendJSON(w, http.StatusAccepted, UploadResponse{Status: "queued", JobID: job.ID})
		return
	}

	result, err := h.indexingService.ProcessFile(r.Context(), collection, header.Filename, content, nil)
	if err != nil {
		h.handleIndexError(w, err)
		return
	}
	h.recordDocument(r, header.Filename)
	h.sendJSON(w, http.StatusOK, UploadResponse{Status: "success", Result: result})
}

// ScrapeRequestBody is the JSON body for scrape requests.
type ScrapeRequestBody struct {
	URL        string `json:"url"`
	Collection string `json:"collection,omitempty"`
	Async      bool   `json:"async,omitempty"`
}

// Scrape indexes a web page
// @Summary Scrape and index a URL
// @Description Fetch a web page, strip its markup and index the text
// @Tags documents
// @Accept json
// @Produce json
// @Param request body ScrapeRequestBody true "Scrape request"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/documents/scrape [post]
func (h *DocumentHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	if !h.scrapingEnabled {
		h.sendError(w, http.StatusNotFound, "Scraping is disabled")
		return
	}

	var reqBody ScrapeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if reqBody.URL == "" {
		h.sendError(w, http.StatusBadRequest, "URL is required")
		return
	}

	collection := h.resolveCollection(r, reqBody.Collection)

	if reqBody.Async {
		job, err := h.indexingService.EnqueueURLIngest(r.Context(), collection, reqBody.URL)
		if err != nil {
			h.handleIndexError(w, err)
			return
		}
		h.recordDocument(r, reqBody.URL)
		h.sendJSON(w, http.StatusAccepted, UploadResponse{Status: "queued", JobID: job.ID})
		return
	}

	result, err := h.indexingService.ProcessURL(r.Context(), collection, reqBody.URL, nil)
	if err != nil {
		h.handleIndexError(w, err)
		return
	}
	h.recordDocument(r, reqBody.URL)
	h.sendJSON(w, http.StatusOK, UploadResponse{Status: "success", Result: result})
}

// List summarizes the documents in a collection
// @Summary List indexed documents
// @Description Aggregate a collection's points per document
// @Tags documents
// @Produce json
// @Param collection query string false "Collection name"
// @Success 200 {array} services.DocumentSummary
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/documents [get]
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	collection := h.resolveCollection(r, r.URL.Query().Get("collection"))

	summaries, err := h.indexingService.ListDocuments(r.Context(), collection)
	if err != nil {
		h.logger.Printf("Document listing failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.sendJSON(w, http.StatusOK, summaries)
}

// Stats reports collection point counts
// @Summary Collection statistics
// @Description Report point counts for a collection
// @Tags collections
// @Produce json
// @Param name path string true "Collection name"
// @Success 200 {object} repositories.CollectionStats
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/collections/{name}/stats [get]
func (h *DocumentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	stats, err := h.indexingService.CollectionStats(r.Context(), name)
	if err != nil {
		h.logger.Printf("Stats failed for %s: %v", name, err)
		h.sendError(w, http.StatusNotFound, err.Error())
		return
	}
	h.sendJSON(w, http.StatusOK, stats)
}

// JobStatus reports an async indexing job's state
// @Summary Job status
// @Description Return the state and result of an async indexing job
// @Tags documents
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} repositories.Job
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/jobs/{id} [get]
func (h *DocumentHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.indexingService.JobStatus(r.Context(), jobID)
	if err != nil {
		h.sendError(w, http.StatusNotFound, err.Error())
		return
	}
	h.sendJSON(w, http.StatusOK, job)
}

// recordDocument appends the document to the authenticated user's manifest.
func (h *DocumentHandler) recordDocument(r *http.Request, document string) {
	username := UsernameFromContext(r.Context())
	if h.authService == nil || username == "" {
		return
	}
	if err := h.authService.AddDocument(r.Context(), username, document); err != nil {
		h.logger.Printf("Failed to record document for %s: %v", username, err)
	}
}

func (h *DocumentHandler) resolveCollection(r *http.Request, requested string) string {
	if username := UsernameFromContext(r.Context()); h.userNamespacing && username != "" {
		return services.UserCollection(username)
	}
	if requested != "" {
		return requested
	}
	return h.collection
}

func (h *DocumentHandler) handleIndexError(w http.ResponseWriter, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.sendError(w, http.StatusInternalServerError, err.Error())
}

func (h *DocumentHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *DocumentHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}
