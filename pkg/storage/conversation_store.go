package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Conversation is one chat thread owned by a user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EnsureConversation creates the conversation row if it does not exist and
// returns it. An existing conversation owned by another user is an error.
func (s *Store) EnsureConversation(id, userID, title string) (*Conversation, error) {
	existing, err := s.GetConversation(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.UserID != userID {
			return nil, fmt.Errorf("conversation %s belongs to another user", id)
		}
		return existing, nil
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, userID, title, now, now)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return &Conversation{ID: id, UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// GetConversation returns a conversation by id, or nil when absent.
func (s *Store) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRow(`
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return &c, nil
}

// TouchConversation bumps the updated timestamp.
func (s *Store) TouchConversation(id string) error {
	_, err := s.db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// ListConversations returns a user's conversations, most recent first.
func (s *Store) ListConversations(userID string) ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE user_id = ?
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversations removes the given conversations and their messages,
// restricted to the owning user. It returns the number of conversations
// actually deleted.
func (s *Store) DeleteConversations(userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		res, err := tx.Exec(`DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("deleting conversation %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		deleted += int(n)
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	return deleted, nil
}
