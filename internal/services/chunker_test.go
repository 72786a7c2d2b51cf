package services

import (
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-assistant/internal/models"
)

func newTestChunker() *ChunkerService {
	return NewChunkerService(log.New(os.Stdout, "[TEST] ", log.LstdFlags))
}

// ============================================================================
// Rolling window
// ============================================================================

func TestRollingWindowExactChunkCount(t *testing.T) {
	chunker := newTestChunker()

	// L=2000, window=1000, step=200: floor((2000-1000)/200)+1 = 6 chunks.
	text := strings.Repeat("a", 2000)
	chunks := chunker.RollingWindowChunks(text, nil, 1000, 200)

	require.Len(t, chunks, 6)
	for i, chunk := range chunks {
		assert.Len(t, chunk.Text, 1000)
		assert.Equal(t, i*200, chunk.Metadata["chunk_start"])
		assert.Equal(t, i*200+1000, chunk.Metadata["chunk_end"])
		assert.Equal(t, models.RollingWindowStrategyID, chunk.StrategyID)
		assert.Equal(t, i, chunk.ChunkIndex)
	}
}

func TestRollingWindowShortTextSingleChunk(t *testing.T) {
	chunker := newTestChunker()

	text := "short document"
	chunks := chunker.RollingWindowChunks(text, map[string]interface{}{"source": "s.txt"}, 1000, 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, "s.txt", chunks[0].Metadata["source"])
	assert.Equal(t, 0, chunks[0].Metadata["chunk_start"])
	assert.Equal(t, len(text), chunks[0].Metadata["chunk_end"])
}

func TestRollingWindowExactWindowLength(t *testing.T) {
	chunker := newTestChunker()

	text := strings.Repeat("b", 1000)
	chunks := chunker.RollingWindowChunks(text, nil, 1000, 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

func TestRollingWindowCountsRunesNotBytes(t *testing.T) {
	chunker := newTestChunker()

	// 120 runes of multi-byte text, window 100, step 10: 3 chunks.
	text := strings.Repeat("ü", 120)
	chunks := chunker.RollingWindowChunks(text, nil, 100, 10)

	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Equal(t, 100, len([]rune(chunk.Text)))
	}
}

// ============================================================================
// Strategy chunking
// ============================================================================

func TestChunkWithStrategiesDefaults(t *testing.T) {
	chunker := newTestChunker()

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)
	result := chunker.ChunkWithStrategies(text, nil, nil)

	require.Len(t, result, 3)
	for _, strategy := range models.DefaultChunkStrategies() {
		chunks := result[strategy.ID]
		require.NotEmpty(t, chunks, "strategy %s produced no chunks", strategy.ID)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, len([]rune(chunk.Text)), strategy.ChunkSize,
				"strategy %s produced an oversized chunk", strategy.ID)
			assert.Equal(t, strategy.ID, chunk.StrategyID)
		}
	}
}

func TestChunkWithStrategiesSmallTextSingleChunk(t *testing.T) {
	chunker := newTestChunker()

	text := "One short paragraph."
	result := chunker.ChunkWithStrategies(text, nil, []models.ChunkStrategy{
		{ID: "medium", ChunkSize: 1000, ChunkOverlap: 100},
	})

	require.Len(t, result["medium"], 1)
	assert.Equal(t, text, result["medium"][0].Text)
}

func TestChunkWithStrategiesEmptyText(t *testing.T) {
	chunker := newTestChunker()

	result := chunker.ChunkWithStrategies("   ", nil, nil)
	for id, chunks := range result {
		assert.Empty(t, chunks, "strategy %s should produce no chunks for blank text", id)
	}
}

func TestChunkWithStrategiesPreservesParagraphBoundaries(t *testing.T) {
	chunker := newTestChunker()

	para1 := strings.Repeat("alpha ", 50)
	para2 := strings.Repeat("beta ", 50)
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	result := chunker.ChunkWithStrategies(text, nil, []models.ChunkStrategy{
		{ID: "small", ChunkSize: 300, ChunkOverlap: 0},
	})

	chunks := result["small"]
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Text, "alpha")
	assert.NotContains(t, chunks[0].Text, "beta")
	assert.Contains(t, chunks[1].Text, "beta")
}

func TestChunkWithStrategiesOverlapCarriesTail(t *testing.T) {
	chunker := newTestChunker()

	text := strings.Repeat("one two three four five six seven eight nine ten. ", 30)
	result := chunker.ChunkWithStrategies(text, nil, []models.ChunkStrategy{
		{ID: "tiny", ChunkSize: 200, ChunkOverlap: 40},
	})

	chunks := result["tiny"]
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prevTail := tailRunes(chunks[i-1].Text, 40)
		assert.True(t, strings.HasPrefix(chunks[i].Text, prevTail),
			"chunk %d should start with the previous chunk's tail", i)
	}
}

func TestChunkMetadataIsCopiedPerChunk(t *testing.T) {
	chunker := newTestChunker()

	metadata := map[string]interface{}{"source": "doc.txt"}
	chunks := chunker.RollingWindowChunks(strings.Repeat("x", 500), metadata, 100, 100)
	require.Greater(t, len(chunks), 1)

	chunks[0].Metadata["source"] = "mutated"
	assert.Equal(t, "doc.txt", chunks[1].Metadata["source"])
	assert.Equal(t, "doc.txt", metadata["source"])
}

func TestHardCut(t *testing.T) {
	pieces := hardCut("abcdefghij", 4)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, pieces)
}
