package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"rag-assistant/internal/models"
	"rag-assistant/internal/services"
)

// ChatHandler handles conversation-aware question answering.
type ChatHandler struct {
	answerService   *services.AnswerService
	memoryService   *services.MemoryService
	collection      string
	memoryCol       string
	userNamespacing bool
	logger          *log.Logger
}

// NewChatHandler creates a new chat handler. collection and memoryCollection
// are the defaults used when user namespacing is off or no user is attached
// to the request.
func NewChatHandler(answerService *services.AnswerService, memoryService *services.MemoryService, collection, memoryCollection string, userNamespacing bool, logger *log.Logger) *ChatHandler {
	return &ChatHandler{
		answerService:   answerService,
		memoryService:   memoryService,
		collection:      collection,
		memoryCol:       memoryCollection,
		userNamespacing: userNamespacing,
		logger:          logger,
	}
}

// ChatResponse is the JSON body for answered queries.
type ChatResponse struct {
	SessionID               string                  `json:"session_id"`
	Answer                  string                  `json:"answer"`
	Sources                 []services.AnswerSource `json:"sources"`
	DocumentContextUsed     bool                    `json:"document_context_used"`
	ConversationContextUsed bool                    `json:"conversation_context_used"`
}

// Chat answers a conversation-aware query
// @Summary Ask a question
// @Description Answer a query using hybrid document retrieval and conversation memory
// @Tags chat
// @Accept json
// @Produce json
// @Param request body models.ChatRequest true "Chat request"
// @Success 200 {object} ChatResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/chat [post]
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	h.logger.Printf("Chat request from %s", r.RemoteAddr)

	var reqBody models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.logger.Printf("Failed to decode request: %v", err)
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := reqBody.Validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	collection := h.collection
	if reqBody.Collection != "" {
		collection = reqBody.Collection
	}
	sessionID := reqBody.SessionID
	if username := UsernameFromContext(r.Context()); h.userNamespacing && username != "" {
		collection = services.UserCollection(username)
		sessionID = services.UserSessionID(username)
	}

	useMemory := true
	if reqBody.UseMemory != nil {
		useMemory = *reqBody.UseMemory
	}
	docWeight := services.DefaultDocumentWeight
	if reqBody.DocumentWeight != nil {
		docWeight = *reqBody.DocumentWeight
	}
	convWeight := services.DefaultConversationWeight
	if reqBody.ConversationWeight != nil {
		convWeight = *reqBody.ConversationWeight
	}

	result, err := h.answerService.AnswerQuery(r.Context(), &services.AnswerRequest{
		Query:              reqBody.Message,
		SessionID:          sessionID,
		Collection:         collection,
		MemoryCollection:   h.memoryCol,
		UseMemory:          useMemory,
		DocumentWeight:     docWeight,
		ConversationWeight: convWeight,
		TopKDocs:           reqBody.TopKDocs,
		TopKConversations:  reqBody.TopKConversations,
		ContextWindow:      services.DefaultContextWindow,
	})
	if err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			h.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Printf("Answer pipeline failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.sendJSON(w, http.StatusOK, ChatResponse{
		SessionID:               sessionID,
		Answer:                  result.Answer,
		Sources:                 result.Sources,
		DocumentContextUsed:     result.DocumentContextUsed,
		ConversationContextUsed: result.ConversationContextUsed,
	})
}

// History returns a session's conversation history
// @Summary Conversation history
// @Description List a session's messages in sequence order
// @Tags chat
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} models.HistoryResponse
// @Router /api/v1/chat/{session_id}/history [get]
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	if username := UsernameFromContext(r.Context()); h.userNamespacing && username != "" {
		sessionID = services.UserSessionID(username)
	}

	messages := h.memoryService.RetrieveAllMessages(r.Context(), h.memoryCol, sessionID)
	h.sendJSON(w, http.StatusOK, models.HistoryResponse{
		SessionID: sessionID,
		Messages:  messages,
		Total:     len(messages),
	})
}

func (h *ChatHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *ChatHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}
