package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"rag-assistant/internal/models"
	"rag-assistant/internal/repositories"
)

// Conversation memory defaults.
const (
	DefaultContextWindow = 2
	DefaultTopKMessages  = 3

	// Similarity floor for context-relevant message retrieval.
	memoryScoreThreshold = 0.6
)

// SequenceRange is an inclusive range of per-session sequence numbers.
type SequenceRange struct {
	Start int
	End   int
}

// MemoryService persists chat turns as vectors tagged with session and
// sequence metadata, and retrieves them by sequence range or by semantic
// similarity with context-window expansion.
type MemoryService struct {
	vectorRepo repositories.VectorRepository
	compute    ComputeClientInterface
	sequences  repositories.SequenceStore
	logger     *log.Logger
}

// NewMemoryService creates a new conversation memory service.
func NewMemoryService(vectorRepo repositories.VectorRepository, compute ComputeClientInterface, sequences repositories.SequenceStore, logger *log.Logger) *MemoryService {
	return &MemoryService{
		vectorRepo: vectorRepo,
		compute:    compute,
		sequences:  sequences,
		logger:     logger,
	}
}

// StoreMessage embeds a chat turn and upserts it with session, role,
// sequence and timestamp metadata. Sequence numbers come from a store-side
// atomic counter, so concurrent writers to one session never collide.
func (s *MemoryService) StoreMessage(ctx context.Context, collection, sessionID, content string, role models.Role) (*models.ChatMessage, error) {
	if !role.Valid() {
		return nil, &models.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role: %s", role)}
	}

	if err := s.vectorRepo.EnsureCollection(ctx, collection, s.compute.Dimension()); err != nil {
		return nil, fmt.Errorf("failed to ensure memory collection: %w", err)
	}

	seq, err := s.sequences.NextSequence(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign sequence number: %w", err)
	}

	vector, err := s.compute.EmbedQuery(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed message: %w", err)
	}

	message := &models.ChatMessage{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Content:     content,
		Role:        role,
		SequenceNum: seq,
		Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
	}

	point := &repositories.IndexedPoint{
		ID:     message.ID,
		Vector: vector,
		Payload: map[string]interface{}{
			"session_id":   message.SessionID,
			"content":      message.Content,
			"role":         string(message.Role),
			"sequence_num": message.SequenceNum,
			"timestamp":    message.Timestamp,
		},
	}

	if err := s.vectorRepo.UpsertPoints(ctx, collection, []*repositories.IndexedPoint{point}); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	return message, nil
}

// RetrieveBySequence returns a session's messages within an inclusive
// sequence range (start/end <= 0 leave that bound open), ordered by sequence
// number ascending. If any hit lacks sequence metadata the store-return
// order is kept instead, degraded but non-fatal.
func (s *MemoryService) RetrieveBySequence(ctx context.Context, collection, sessionID string, start, end int) ([]models.ChatMessage, error) {
	filter := repositories.SessionSequenceFilter(sessionID, start, end)
	points, err := s.vectorRepo.Scroll(ctx, collection, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve messages: %w", err)
	}

	messages := make([]models.ChatMessage, 0, len(points))
	sortable := true
	for _, point := range points {
		msg := messageFromPayload(point.ID, point.Payload)
		if msg.SequenceNum == 0 {
			sortable = false
		}
		messages = append(messages, msg)
	}

	if sortable {
		sort.SliceStable(messages, func(i, j int) bool {
			return messages[i].SequenceNum < messages[j].SequenceNum
		})
	} else {
		s.logger.Printf("Session %s has messages without sequence metadata, keeping store order", sessionID)
	}
	return messages, nil
}

// RetrieveAllMessages returns a session's full history. Store errors degrade
// to an empty history so the calling answer pipeline stays alive.
func (s *MemoryService) RetrieveAllMessages(ctx context.Context, collection, sessionID string) []models.ChatMessage {
	messages, err := s.RetrieveBySequence(ctx, collection, sessionID, 0, 0)
	if err != nil {
		s.logger.Printf("Full history retrieval failed for session %s, degrading to empty: %v", sessionID, err)
		return nil
	}
	return messages
}

// RetrieveContextRelevant finds the session's messages semantically close to
// the query, then expands each hit to an inclusive window of surrounding
// turns. Overlapping or adjacent windows are merged before fetching, and the
// fetched messages are deduplicated by content, returned in range order.
func (s *MemoryService) RetrieveContextRelevant(ctx context.Context, collection, sessionID, query string, contextWindow, topK int) ([]models.ChatMessage, error) {
	if contextWindow < 0 {
		contextWindow = DefaultContextWindow
	}
	if topK <= 0 {
		topK = DefaultTopKMessages
	}

	vector, err := s.compute.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.vectorRepo.Search(ctx, collection, vector, &repositories.SearchOptions{
		Limit:          topK,
		ScoreThreshold: memoryScoreThreshold,
		Filter:         repositories.MatchFilter("session_id", sessionID),
	})
	if err != nil {
		return nil, fmt.Errorf("relevant message search failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ranges := make([]SequenceRange, 0, len(hits))
	for _, hit := range hits {
		seq := intFromPayload(hit.Payload, "sequence_num")
		if seq <= 0 {
			continue
		}
		start := seq - contextWindow
		if start < 1 {
			start = 1
		}
		ranges = append(ranges, SequenceRange{Start: start, End: seq + contextWindow})
	}
	merged := MergeSequenceRanges(ranges)

	var messages []models.ChatMessage
	seen := make(map[string]struct{})
	for _, r := range merged {
		windowMessages, err := s.RetrieveBySequence(ctx, collection, sessionID, r.Start, r.End)
		if err != nil {
			return nil, err
		}
		for _, msg := range windowMessages {
			if _, ok := seen[msg.Content]; ok {
				continue
			}
			seen[msg.Content] = struct{}{}
			messages = append(messages, msg)
		}
	}

	s.logger.Printf("Context-relevant retrieval: %d hits expanded to %d ranges, %d messages",
		len(hits), len(merged), len(messages))
	return messages, nil
}

// MergeSequenceRanges collapses overlapping or adjacent ranges (adjacent
// means the next start is at most previous end + 1) into minimal disjoint
// ranges, sorted by start.
func MergeSequenceRanges(ranges []SequenceRange) []SequenceRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]SequenceRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []SequenceRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func messageFromPayload(id string, payload map[string]interface{}) models.ChatMessage {
	msg := models.ChatMessage{ID: id}
	if v, ok := payload["session_id"].(string); ok {
		msg.SessionID = v
	}
	if v, ok := payload["content"].(string); ok {
		msg.Content = v
	}
	if v, ok := payload["role"].(string); ok {
		msg.Role = models.Role(v)
	}
	msg.SequenceNum = intFromPayload(payload, "sequence_num")
	if v, ok := payload["timestamp"].(float64); ok {
		msg.Timestamp = v
	}
	return msg
}

// intFromPayload reads an integer payload field, tolerating the float64 that
// JSON decoding produces.
func intFromPayload(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
