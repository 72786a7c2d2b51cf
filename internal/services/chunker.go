package services

import (
	"log"
	"strings"

	"github.com/jdkato/prose/v2"

	"rag-assistant/internal/models"
)

// Rolling-window defaults.
const (
	DefaultRollingWindowSize = 1000
	DefaultRollingWindowStep = 200
)

// ChunkerService splits document text into overlapping chunks. It is pure:
// no side effects beyond the returned chunks and logging.
type ChunkerService struct {
	logger *log.Logger
}

// NewChunkerService creates a new chunker service.
func NewChunkerService(logger *log.Logger) *ChunkerService {
	return &ChunkerService{logger: logger}
}

// ChunkWithStrategies splits text under each strategy independently and
// returns a mapping from strategy ID to its ordered chunks. When strategies
// is empty the defaults (small/medium/large) are applied.
func (c *ChunkerService) ChunkWithStrategies(text string, metadata map[string]interface{}, strategies []models.ChunkStrategy) map[string][]models.Chunk {
	if len(strategies) == 0 {
		strategies = models.DefaultChunkStrategies()
	}

	result := make(map[string][]models.Chunk, len(strategies))
	for _, strategy := range strategies {
		pieces := c.splitText(text, strategy.ChunkSize, strategy.ChunkOverlap)
		chunks := make([]models.Chunk, 0, len(pieces))
		for i, piece := range pieces {
			chunks = append(chunks, models.Chunk{
				Text:       piece,
				Metadata:   copyMetadata(metadata),
				StrategyID: strategy.ID,
				ChunkIndex: i,
			})
		}
		result[strategy.ID] = chunks
		c.logger.Printf("Strategy %s: %d chunks (size=%d overlap=%d)",
			strategy.ID, len(chunks), strategy.ChunkSize, strategy.ChunkOverlap)
	}
	return result
}

// RollingWindowChunks produces fixed-stride overlapping windows across the
// full text. For a text of L runes with L >= window the chunk count is
// exactly floor((L-window)/step)+1 with start offsets 0, step, 2*step and so
// on; shorter texts come back as a single chunk unchanged. Each chunk's
// metadata carries chunk_start/chunk_end rune offsets.
func (c *ChunkerService) RollingWindowChunks(text string, metadata map[string]interface{}, window, step int) []models.Chunk {
	if window <= 0 {
		window = DefaultRollingWindowSize
	}
	if step <= 0 {
		step = DefaultRollingWindowStep
	}

	runes := []rune(text)
	if len(runes) < window {
		meta := copyMetadata(metadata)
		meta["chunk_start"] = 0
		meta["chunk_end"] = len(runes)
		meta["chunk_type"] = models.RollingWindowStrategyID
		return []models.Chunk{{
			Text:       text,
			Metadata:   meta,
			StrategyID: models.RollingWindowStrategyID,
			ChunkIndex: 0,
		}}
	}

	var chunks []models.Chunk
	for start := 0; start+window <= len(runes); start += step {
		end := start + window
		meta := copyMetadata(metadata)
		meta["chunk_start"] = start
		meta["chunk_end"] = end
		meta["chunk_type"] = models.RollingWindowStrategyID
		chunks = append(chunks, models.Chunk{
			Text:       string(runes[start:end]),
			Metadata:   meta,
			StrategyID: models.RollingWindowStrategyID,
			ChunkIndex: len(chunks),
		})
	}
	c.logger.Printf("Rolling window: %d chunks (window=%d step=%d length=%d)",
		len(chunks), window, step, len(runes))
	return chunks
}

// splitText breaks text into pieces of at most chunkSize runes, preferring
// natural boundaries: paragraphs first, then sentences, then words, then a
// hard cut. Consecutive pieces share an overlap taken from the tail of the
// previous piece.
func (c *ChunkerService) splitText(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= chunkSize {
		return []string{text}
	}

	segments := c.segment(text, chunkSize)
	return packSegments(segments, chunkSize, overlap)
}

// segment decomposes text into units no longer than chunkSize runes,
// descending from paragraphs to sentences to words to hard cuts.
func (c *ChunkerService) segment(text string, chunkSize int) []string {
	var segments []string
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if len([]rune(paragraph)) <= chunkSize {
			segments = append(segments, paragraph)
			continue
		}
		for _, sentence := range c.sentences(paragraph) {
			if len([]rune(sentence)) <= chunkSize {
				segments = append(segments, sentence)
				continue
			}
			for _, word := range strings.Fields(sentence) {
				if len([]rune(word)) <= chunkSize {
					segments = append(segments, word)
					continue
				}
				segments = append(segments, hardCut(word, chunkSize)...)
			}
		}
	}
	return segments
}

// sentences splits a paragraph into sentences, falling back to the whole
// paragraph if segmentation fails.
func (c *ChunkerService) sentences(paragraph string) []string {
	doc, err := prose.NewDocument(paragraph,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false))
	if err != nil {
		c.logger.Printf("Sentence segmentation failed, keeping paragraph whole: %v", err)
		return []string{paragraph}
	}

	sents := doc.Sentences()
	out := make([]string, 0, len(sents))
	for _, s := range sents {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{paragraph}
	}
	return out
}

// packSegments greedily packs segments into chunks of at most chunkSize
// runes, seeding each new chunk with the tail of the previous one.
func packSegments(segments []string, chunkSize, overlap int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()
		currentLen = 0
		if overlap > 0 {
			tail := tailRunes(chunk, overlap)
			current.WriteString(tail)
			currentLen = len([]rune(tail))
		}
	}

	for _, seg := range segments {
		segLen := len([]rune(seg))
		if currentLen > 0 && currentLen+1+segLen > chunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(seg)
		currentLen += segLen
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func hardCut(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func copyMetadata(metadata map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+3)
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
