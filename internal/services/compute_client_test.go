package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedHandler(t *testing.T, dims int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)
		var req embedBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		embeddings := make([][]float32, len(req.Texts))
		for i := range embeddings {
			embeddings[i] = make([]float32, dims)
		}
		json.NewEncoder(w).Encode(embedBatchResponse{Embeddings: embeddings, Dimension: dims})
	}
}

func TestEmbedBatchAlignsWithInput(t *testing.T) {
	ts := httptest.NewServer(embedHandler(t, EmbeddingDimension))
	defer ts.Close()

	client := NewComputeClient(ts.URL)
	vectors, err := client.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)

	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, EmbeddingDimension)
	}
}

func TestEmbedBatchEmptyInputSkipsRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	}))
	defer ts.Close()

	client := NewComputeClient(ts.URL)
	vectors, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedBatchResponse{
			Embeddings: [][]float32{make([]float32, EmbeddingDimension)},
			Dimension:  EmbeddingDimension,
		})
	}))
	defer ts.Close()

	client := NewComputeClient(ts.URL)
	_, err := client.EmbedBatch(context.Background(), []string{"one", "two"})
	assert.ErrorContains(t, err, "expected 2 embeddings, got 1")
}

func TestEmbedQuerySingleVector(t *testing.T) {
	ts := httptest.NewServer(embedHandler(t, EmbeddingDimension))
	defer ts.Close()

	client := NewComputeClient(ts.URL)
	vector, err := client.EmbedQuery(context.Background(), "a query")
	require.NoError(t, err)
	assert.Len(t, vector, EmbeddingDimension)
}

func TestParseDocumentMultipartUpload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/parse", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "report.pdf", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF"), data)

		json.NewEncoder(w).Encode(parseResponse{Text: "Parsed body."})
	}))
	defer ts.Close()

	client := NewComputeClient(ts.URL)
	text, err := client.ParseDocument(context.Background(), []byte("%PDF"), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Parsed body.", text)
}

func TestParseDocumentNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unreadable document", http.StatusUnprocessableEntity)
	}))
	defer ts.Close()

	client := NewComputeClient(ts.URL)
	_, err := client.ParseDocument(context.Background(), []byte{0x00}, "broken.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestHealthCheck(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewComputeClient(ts.URL)
	assert.NoError(t, client.HealthCheck(context.Background()))

	down := NewComputeClient("http://127.0.0.1:1")
	assert.Error(t, down.HealthCheck(context.Background()))
}
