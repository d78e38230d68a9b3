package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// UsageRecord captures the token cost of one turn: the main completion plus
// any preliminary tool-selection call, summed.
type UsageRecord struct {
	ID               int64     `json:"id"`
	ConversationID   string    `json:"conversationId"`
	UserID           string    `json:"userId"`
	MessageIDs       []string  `json:"messageIds"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	TotalTokens      int       `json:"totalTokens"`
	CreatedAt        time.Time `json:"createdAt"`
}

// SaveUsage persists a usage record.
func (s *Store) SaveUsage(rec *UsageRecord) error {
	ids, err := json.Marshal(rec.MessageIDs)
	if err != nil {
		return fmt.Errorf("marshaling message ids: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.Exec(`
		INSERT INTO usage_records (conversation_id, user_id, message_ids, prompt_tokens, completion_tokens, total_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ConversationID, rec.UserID, string(ids), rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving usage: %w", err)
	}

	rec.ID, _ = res.LastInsertId()
	return nil
}

// ListUsage returns a user's usage records, most recent first.
func (s *Store) ListUsage(userID string) ([]UsageRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, user_id, message_ids, prompt_tokens, completion_tokens, total_tokens, created_at
		FROM usage_records WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing usage: %w", err)
	}
	defer rows.Close()

	var out []UsageRecord
	for rows.Next() {
		var (
			rec UsageRecord
			ids string
		)
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.UserID, &ids, &rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &rec.MessageIDs); err != nil {
			return nil, fmt.Errorf("decoding message ids: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
