package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"rag-assistant/internal/models"
)

// Context fusion defaults.
const (
	DefaultDocumentWeight     = 0.7
	DefaultConversationWeight = 0.3
)

// NoContextAnswer is returned without a model call when neither document nor
// conversation context is available.
const NoContextAnswer = "I don't have enough information to answer that question. Please try a different question or upload relevant documents."

// AnswerService merges document and conversation context under tunable
// weights and invokes the answer model over the combined context.
type AnswerService struct {
	retrieval *RetrievalService
	memory    *MemoryService
	generator AnswerGenerator
	logger    *log.Logger
}

// NewAnswerService creates a new answer service.
func NewAnswerService(retrieval *RetrievalService, memory *MemoryService, generator AnswerGenerator, logger *log.Logger) *AnswerService {
	return &AnswerService{
		retrieval: retrieval,
		memory:    memory,
		generator: generator,
		logger:    logger,
	}
}

// AnswerRequest carries one conversation-aware query through the pipeline.
type AnswerRequest struct {
	Query              string
	SessionID          string
	Collection         string
	MemoryCollection   string
	UseMemory          bool
	DocumentWeight     float64
	ConversationWeight float64
	TopKDocs           int
	TopKConversations  int
	ContextWindow      int
}

// AnswerSource is one typed source backing an answer.
type AnswerSource struct {
	Type     models.SourceType      `json:"type"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Role     models.Role            `json:"role,omitempty"`
	Score    float64                `json:"score"`
	Strategy string                 `json:"strategy,omitempty"`
}

// AnswerResult is the pipeline's output.
type AnswerResult struct {
	Answer                  string         `json:"answer"`
	Sources                 []AnswerSource `json:"sources"`
	DocumentContextUsed     bool           `json:"document_context_used"`
	ConversationContextUsed bool           `json:"conversation_context_used"`
}

// AnswerQuery runs the full pipeline: hybrid document retrieval, optional
// context-relevant memory retrieval, weighted context fusion, answer
// generation, then persistence of both the query and the answer. Retrieval
// failures degrade to empty context; only when both contexts are empty does
// the canned no-information answer short-circuit the model call.
func (s *AnswerService) AnswerQuery(ctx context.Context, req *AnswerRequest) (*AnswerResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, &models.ValidationError{Field: "query", Message: "query is required"}
	}

	docResults, err := s.retrieval.HybridSearch(ctx, req.Collection, req.Query, req.TopKDocs, DefaultVectorWeight, DefaultFuzzyWeight, nil)
	if err != nil {
		s.logger.Printf("Document retrieval failed, continuing without document context: %v", err)
		docResults = nil
	}

	var convMessages []models.ChatMessage
	if req.UseMemory && req.SessionID != "" {
		convMessages, err = s.memory.RetrieveContextRelevant(ctx, req.MemoryCollection, req.SessionID, req.Query, req.ContextWindow, req.TopKConversations)
		if err != nil {
			s.logger.Printf("Memory retrieval failed, continuing without conversation context: %v", err)
			convMessages = nil
		}
	}

	docContext := BuildDocumentContext(docResults)
	convContext := models.FormatContextMessages(convMessages)

	var answer string
	switch {
	case docContext == "" && convContext == "":
		answer = NoContextAnswer
	default:
		combined := combineContexts(docContext, convContext, req.DocumentWeight, req.ConversationWeight)
		answer, err = s.generator.GenerateAnswer(ctx, req.Query, combined)
		if err != nil {
			s.logger.Printf("Answer generation failed: %v", err)
			answer = fmt.Sprintf("Error generating answer: %v", err)
		}
	}

	s.persistTurn(ctx, req, answer)

	result := &AnswerResult{
		Answer:                  answer,
		Sources:                 buildSources(docResults, convMessages),
		DocumentContextUsed:     docContext != "",
		ConversationContextUsed: convContext != "",
	}
	return result, nil
}

// persistTurn records the query and the answer in conversation memory. Every
// turn is stored regardless of which path produced the answer; failures are
// logged, never fatal.
func (s *AnswerService) persistTurn(ctx context.Context, req *AnswerRequest, answer string) {
	if req.SessionID == "" {
		return
	}
	if _, err := s.memory.StoreMessage(ctx, req.MemoryCollection, req.SessionID, req.Query, models.RoleUser); err != nil {
		s.logger.Printf("Failed to persist user turn for session %s: %v", req.SessionID, err)
	}
	if _, err := s.memory.StoreMessage(ctx, req.MemoryCollection, req.SessionID, answer, models.RoleAssistant); err != nil {
		s.logger.Printf("Failed to persist assistant turn for session %s: %v", req.SessionID, err)
	}
}

// BuildDocumentContext deduplicates chunks by exact text, first occurrence
// winning, and joins them into one context block.
func BuildDocumentContext(results []*models.RetrievedResult) string {
	if len(results) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(results))
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Text == "" {
			continue
		}
		if _, ok := seen[r.Text]; ok {
			continue
		}
		seen[r.Text] = struct{}{}
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "\n\n")
}

// combineContexts assembles the weighted context string. With both sections
// present the weights are renormalized to sum to 1 and each section is
// prefixed with its share as a hint to the generation step.
func combineContexts(docContext, convContext string, docWeight, convWeight float64) string {
	if convContext == "" {
		return docContext
	}
	if docContext == "" {
		return convContext
	}

	docWeight, convWeight = NormalizeWeights(docWeight, convWeight, DefaultDocumentWeight, DefaultConversationWeight)
	return fmt.Sprintf("Document Context (%d%% weight):\n%s\n\nConversation Context (%d%% weight):\n%s",
		int(math.Round(docWeight*100)), docContext,
		int(math.Round(convWeight*100)), convContext)
}

func buildSources(docResults []*models.RetrievedResult, convMessages []models.ChatMessage) []AnswerSource {
	sources := make([]AnswerSource, 0, len(docResults)+len(convMessages))
	for _, r := range docResults {
		sources = append(sources, AnswerSource{
			Type:     models.SourceDocument,
			Text:     r.Text,
			Metadata: r.Metadata,
			Score:    r.Score,
			Strategy: r.Strategy,
		})
	}
	for _, msg := range convMessages {
		sources = append(sources, AnswerSource{
			Type: models.SourceConversation,
			Text: msg.Content,
			Role: msg.Role,
		})
	}
	return sources
}

// StrategyComparison reports how each retrieval mode performed for a query.
type StrategyComparison struct {
	Results map[string]StrategyScore `json:"results"`
	Best    string                   `json:"best"`
}

// StrategyScore summarizes one retrieval mode's result set.
type StrategyScore struct {
	MeanScore float64                   `json:"mean_score"`
	Hits      int                       `json:"hits"`
	Top       []*models.RetrievedResult `json:"top"`
}

// CompareStrategies runs vector-only, fuzzy-only and hybrid retrieval for
// one query, scoring each mode by mean hit score, and names the best.
func (s *AnswerService) CompareStrategies(ctx context.Context, collection, query string, topK int) (*StrategyComparison, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &models.ValidationError{Field: "query", Message: "query is required"}
	}

	comparison := &StrategyComparison{Results: make(map[string]StrategyScore, 3)}

	run := func(name string, results []*models.RetrievedResult, err error) {
		if err != nil {
			s.logger.Printf("Strategy %s failed during comparison: %v", name, err)
			comparison.Results[name] = StrategyScore{}
			return
		}
		comparison.Results[name] = StrategyScore{
			MeanScore: meanScore(results),
			Hits:      len(results),
			Top:       results,
		}
	}

	vectorResults, err := s.retrieval.VectorSearch(ctx, collection, query, topK, nil)
	run("vector", vectorResults, err)
	fuzzyResults, err := s.retrieval.FuzzySearch(ctx, collection, query, topK)
	run("fuzzy", fuzzyResults, err)
	hybridResults, err := s.retrieval.HybridSearch(ctx, collection, query, topK, DefaultVectorWeight, DefaultFuzzyWeight, nil)
	run("hybrid", hybridResults, err)

	best := ""
	bestScore := -1.0
	for _, name := range []string{"vector", "fuzzy", "hybrid"} {
		if score, ok := comparison.Results[name]; ok && score.MeanScore > bestScore {
			best = name
			bestScore = score.MeanScore
		}
	}
	comparison.Best = best
	return comparison, nil
}

func meanScore(results []*models.RetrievedResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return sum / float64(len(results))
}
