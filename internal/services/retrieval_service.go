package services

import (
	"context"
	"fmt"
	"log"
	"sort"

	"rag-assistant/internal/models"
	"rag-assistant/internal/repositories"
)

// Retrieval defaults and floors.
const (
	DefaultTopK         = 5
	DefaultVectorWeight = 0.7
	DefaultFuzzyWeight  = 0.3

	// Similarity floor for the vector path.
	vectorScoreThreshold = 0.3

	// Lexical floor (0-100 scale) for the fuzzy path.
	fuzzyScoreFloor = 70

	// Candidate cap for the fuzzy path. Collections larger than this are
	// only partially scanned for lexical matches; the cap is logged when hit.
	fuzzyCandidateLimit = 1000
)

// RetrievalService produces ranked document chunks for a query, combining
// dense vector similarity with fuzzy lexical matching.
type RetrievalService struct {
	vectorRepo repositories.VectorRepository
	compute    ComputeClientInterface
	logger     *log.Logger
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(vectorRepo repositories.VectorRepository, compute ComputeClientInterface, logger *log.Logger) *RetrievalService {
	return &RetrievalService{
		vectorRepo: vectorRepo,
		compute:    compute,
		logger:     logger,
	}
}

// VectorSearch embeds the query and returns the top chunks by cosine
// similarity. With no strategies it runs one unfiltered search oversampled
// to topK*3; with strategies it runs one filtered search of topK per
// strategy. Either way the merged hits are sorted globally and trimmed to
// topK. Hits below the similarity floor are dropped by the store.
func (s *RetrievalService) VectorSearch(ctx context.Context, collection, query string, topK int, strategies []string) ([]*models.RetrievedResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.compute.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var hits []*repositories.ScoredPoint
	if len(strategies) == 0 {
		hits, err = s.vectorRepo.Search(ctx, collection, vector, &repositories.SearchOptions{
			Limit:          topK * 3,
			ScoreThreshold: vectorScoreThreshold,
		})
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
	} else {
		for _, strategy := range strategies {
			strategyHits, err := s.vectorRepo.Search(ctx, collection, vector, &repositories.SearchOptions{
				Limit:          topK,
				ScoreThreshold: vectorScoreThreshold,
				Filter:         repositories.MatchFilter("strategy", strategy),
			})
			if err != nil {
				return nil, fmt.Errorf("vector search failed for strategy %s: %w", strategy, err)
			}
			hits = append(hits, strategyHits...)
		}
	}

	results := make([]*models.RetrievedResult, 0, len(hits))
	for _, hit := range hits {
		result := resultFromPayload(hit.ID, hit.Payload)
		result.Score = hit.Score
		result.VectorScore = hit.Score
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// FuzzySearch scans stored chunks and scores each against the query with a
// token-set ratio, keeping hits at or above the lexical floor. Scores are
// normalized to 0-1 and the list is trimmed to topK*2 so the fusion step has
// extra lexical candidates to blend in.
func (s *RetrievalService) FuzzySearch(ctx context.Context, collection, query string, topK int) ([]*models.RetrievedResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	points, err := s.vectorRepo.Scroll(ctx, collection, nil, fuzzyCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("fuzzy candidate scan failed: %w", err)
	}
	if len(points) == fuzzyCandidateLimit {
		s.logger.Printf("Fuzzy search candidate cap reached (%d points); larger collections are partially scanned", fuzzyCandidateLimit)
	}

	var results []*models.RetrievedResult
	for _, point := range points {
		text, _ := point.Payload["text"].(string)
		if text == "" {
			continue
		}
		ratio := TokenSetRatio(query, text)
		if ratio < fuzzyScoreFloor {
			continue
		}
		result := resultFromPayload(point.ID, point.Payload)
		result.Score = float64(ratio) / 100
		result.FuzzyScore = result.Score
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK*2 {
		results = results[:topK*2]
	}
	return results, nil
}

// HybridSearch fuses the vector and fuzzy paths into one ranking. A chunk
// found by both paths accumulates both scores; a path that missed it
// contributes 0. Weights are renormalized to sum to 1, then
// combined = vector*wv + fuzzy*wf. The sort is stable with vector-path
// entries inserted first, so equal scores keep vector hits ahead.
func (s *RetrievalService) HybridSearch(ctx context.Context, collection, query string, topK int, vectorWeight, fuzzyWeight float64, strategies []string) ([]*models.RetrievedResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	vectorWeight, fuzzyWeight = NormalizeWeights(vectorWeight, fuzzyWeight, DefaultVectorWeight, DefaultFuzzyWeight)

	vectorResults, err := s.VectorSearch(ctx, collection, query, topK, strategies)
	if err != nil {
		return nil, err
	}
	fuzzyResults, err := s.FuzzySearch(ctx, collection, query, topK)
	if err != nil {
		return nil, err
	}

	merged := make([]*models.RetrievedResult, 0, len(vectorResults)+len(fuzzyResults))
	byID := make(map[string]*models.RetrievedResult, len(vectorResults))

	for _, r := range vectorResults {
		byID[r.ID] = r
		merged = append(merged, r)
	}
	for _, f := range fuzzyResults {
		if existing, ok := byID[f.ID]; ok {
			existing.FuzzyScore = f.FuzzyScore
			continue
		}
		byID[f.ID] = f
		merged = append(merged, f)
	}

	for _, r := range merged {
		r.Score = r.VectorScore*vectorWeight + r.FuzzyScore*fuzzyWeight
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}

	s.logger.Printf("Hybrid search: %d vector + %d fuzzy hits fused to %d (wv=%.2f wf=%.2f)",
		len(vectorResults), len(fuzzyResults), len(merged), vectorWeight, fuzzyWeight)
	return merged, nil
}

// NormalizeWeights renormalizes a weight pair to sum to 1, substituting the
// defaults when the caller supplies a non-positive sum.
func NormalizeWeights(a, b, defaultA, defaultB float64) (float64, float64) {
	if a < 0 {
		a = 0
	}
	if b < 0 {
		b = 0
	}
	sum := a + b
	if sum <= 0 {
		a, b = defaultA, defaultB
		sum = a + b
	}
	return a / sum, b / sum
}

// resultFromPayload maps a stored point payload onto a RetrievedResult.
func resultFromPayload(id string, payload map[string]interface{}) *models.RetrievedResult {
	result := &models.RetrievedResult{
		ID:         id,
		SourceType: models.SourceDocument,
	}
	if text, ok := payload["text"].(string); ok {
		result.Text = text
	}
	if strategy, ok := payload["strategy"].(string); ok {
		result.Strategy = strategy
	}
	if metadata, ok := payload["metadata"].(map[string]interface{}); ok {
		result.Metadata = metadata
	}
	return result
}
