package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Xalamander777/neur-app/pkg/conversation"
)

// UpsertMessages writes messages by id inside one transaction. Re-writing an
// id replaces its row, so flushing the same reconciled batch twice leaves the
// store unchanged.
func (s *Store) UpsertMessages(conversationID string, messages []conversation.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (id, conversation_id, role, content, tool_invocations, attachments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role = excluded.role,
			content = excluded.content,
			tool_invocations = excluded.tool_invocations,
			attachments = excluded.attachments,
			created_at = excluded.created_at
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, msg := range messages {
		invocations, err := marshalNullable(msg.ToolInvocations, len(msg.ToolInvocations) > 0)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshaling invocations for %s: %w", msg.ID, err)
		}
		attachments, err := marshalNullable(msg.Attachments, len(msg.Attachments) > 0)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshaling attachments for %s: %w", msg.ID, err)
		}

		if _, err := stmt.Exec(
			msg.ID,
			conversationID,
			msg.Role,
			msg.Content,
			invocations,
			attachments,
			msg.CreatedAt.UTC(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upserting message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return err
	}
	return nil
}

func marshalNullable(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// GetMessages returns a conversation's messages in timestamp order, with id
// as the tiebreak.
func (s *Store) GetMessages(conversationID string) ([]conversation.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, content, tool_invocations, attachments, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var out []conversation.Message
	for rows.Next() {
		var (
			msg         conversation.Message
			invocations sql.NullString
			attachments sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &invocations, &attachments, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if invocations.Valid {
			if err := json.Unmarshal([]byte(invocations.String), &msg.ToolInvocations); err != nil {
				return nil, fmt.Errorf("decoding invocations for %s: %w", msg.ID, err)
			}
		}
		if attachments.Valid {
			if err := json.Unmarshal([]byte(attachments.String), &msg.Attachments); err != nil {
				return nil, fmt.Errorf("decoding attachments for %s: %w", msg.ID, err)
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// GetMessage returns a single message, or nil when absent.
func (s *Store) GetMessage(id string) (*conversation.Message, error) {
	var (
		msg         conversation.Message
		invocations sql.NullString
		attachments sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT id, conversation_id, role, content, tool_invocations, attachments, created_at
		FROM messages WHERE id = ?
	`, id).Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &invocations, &attachments, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if invocations.Valid {
		if err := json.Unmarshal([]byte(invocations.String), &msg.ToolInvocations); err != nil {
			return nil, err
		}
	}
	if attachments.Valid {
		if err := json.Unmarshal([]byte(attachments.String), &msg.Attachments); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}
