package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultLLMModel       = "llama-3.2-3b-instruct"
	DefaultLLMMaxTokens   = 512
	DefaultLLMTemperature = 0.3
)

const answerSystemPrompt = "You are a question-answering assistant. Answer the user's question using ONLY the provided context. When sections of the context are labeled with weights, lean on the higher-weighted section. If the context does not contain the answer, say so honestly instead of guessing."

// AnswerGenerator produces an answer for a question over a context block.
// Single-turn, bounded by max output length and temperature.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, contextText string) (string, error)
}

// chatCompletionRequest is the OpenAI-compatible request format.
type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []chatCompletionTurn `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Stream      bool                 `json:"stream"`
}

type chatCompletionTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the OpenAI-compatible response format.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// LLMService talks to an OpenAI-compatible chat completions endpoint
// (LM Studio, Ollama and the like).
type LLMService struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewLLMService creates a new LLM service instance.
func NewLLMService(baseURL, model string, maxTokens int, temperature float64) *LLMService {
	if model == "" {
		model = DefaultLLMModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultLLMMaxTokens
	}
	return &LLMService{
		baseURL:     baseURL,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // LLMs can be slow
		},
	}
}

// GenerateAnswer runs one question-answering turn over the supplied context.
func (s *LLMService) GenerateAnswer(ctx context.Context, question, contextText string) (string, error) {
	request := chatCompletionRequest{
		Model: s.model,
		Messages: []chatCompletionTurn{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)},
		},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		Stream:      false,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("completion request returned %d: %s", resp.StatusCode, string(data))
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}
	return result.Choices[0].Message.Content, nil
}
