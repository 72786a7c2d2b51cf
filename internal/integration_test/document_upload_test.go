// Package integration_test verifies the full ingestion and retrieval flow
// against a running stack.
//
// Prerequisites:
// - Redis running on localhost:6379
// - Qdrant running on localhost:6333
// - Compute sidecar running on localhost:8000
// - RAG server running on localhost:8080
//
// Run with: go test -v ./internal/integration_test/... -tags=integration
//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
	"time"
)

const (
	serverURL = "http://localhost:8080"
	qdrantURL = "http://localhost:6333"
)

func requireStack(t *testing.T) {
	t.Helper()
	for name, url := range map[string]string{
		"server": serverURL + "/health",
		"qdrant": qdrantURL + "/healthz",
	} {
		resp, err := http.Get(url)
		if err != nil {
			t.Skipf("%s not reachable at %s: %v", name, url, err)
		}
		resp.Body.Close()
	}
}

func uploadText(t *testing.T, collection, filename, text string) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(text)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.WriteField("collection", collection)
	writer.Close()

	resp, err := http.Post(serverURL+"/api/v1/documents/upload", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload returned %d: %s", resp.StatusCode, body)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return result
}

func TestUploadSearchChatFlow(t *testing.T) {
	requireStack(t)

	collection := fmt.Sprintf("it_%d", time.Now().UnixNano())
	text := "The mitochondria is the powerhouse of the cell. " +
		"Photosynthesis converts sunlight into chemical energy. " +
		"DNA replication happens during the S phase of the cell cycle."

	result := uploadText(t, collection, "biology.txt", text)
	if result["status"] != "success" {
		t.Fatalf("upload status = %v", result["status"])
	}

	// Search for an exact substring of the second sentence; the fuzzy path
	// should surface it even if vector similarity prefers another chunk.
	searchBody, _ := json.Marshal(map[string]interface{}{
		"query":      "Photosynthesis converts sunlight",
		"collection": collection,
		"mode":       "hybrid",
	})
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(searchBody))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	defer resp.Body.Close()

	var search struct {
		Count   int `json:"count"`
		Results []struct {
			Text  string  `json:"text"`
			Score float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if search.Count == 0 {
		t.Fatal("hybrid search returned no results")
	}

	// One chat turn grounded in the uploaded document.
	chatBody, _ := json.Marshal(map[string]interface{}{
		"session_id": collection + "_session",
		"message":    "What does photosynthesis do?",
		"collection": collection,
	})
	resp, err = http.Post(serverURL+"/api/v1/chat", "application/json", bytes.NewReader(chatBody))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	defer resp.Body.Close()

	var chat struct {
		Answer              string `json:"answer"`
		DocumentContextUsed bool   `json:"document_context_used"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if chat.Answer == "" {
		t.Fatal("chat returned an empty answer")
	}
	if !chat.DocumentContextUsed {
		t.Error("expected document context to be used")
	}
}
