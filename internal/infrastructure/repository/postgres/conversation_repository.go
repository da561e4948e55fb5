package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

// ConversationRepository persists the sliding window of resolved turns.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// AppendTurn inserts the turn and trims the user's history to window in one
// transaction.
func (r *ConversationRepository) AppendTurn(ctx context.Context, turn domain.ConversationTurn, window int) error {
	if window <= 0 {
		window = domain.ConversationWindow
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	filtersJSON, err := json.Marshal(turn.ResolvedFilters)
	if err != nil {
		return fmt.Errorf("marshal resolved filters: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turn tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO conversation_turns (id, user_id, query, resolved_filters, created_at)
VALUES ($1,$2,$3,$4,$5)
`, turn.ID, turn.UserID, turn.Query, filtersJSON, turn.Timestamp)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
DELETE FROM conversation_turns
WHERE user_id = $1 AND id NOT IN (
	SELECT id FROM conversation_turns
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2
)
`, turn.UserID, window)
	if err != nil {
		return fmt.Errorf("trim turns: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append turn tx: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit turns in chronological order.
func (r *ConversationRepository) RecentTurns(ctx context.Context, userID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, query, resolved_filters, created_at
FROM conversation_turns
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationTurn, 0, limit)
	for rows.Next() {
		var turn domain.ConversationTurn
		var filtersRaw []byte
		if err := rows.Scan(&turn.ID, &turn.UserID, &turn.Query, &filtersRaw, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("scan recent turn: %w", err)
		}
		if err := json.Unmarshal(filtersRaw, &turn.ResolvedFilters); err != nil {
			return nil, fmt.Errorf("unmarshal resolved filters: %w", err)
		}
		turn.ResolvedFilters.Normalize()
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *ConversationRepository) ClearTurns(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversation_turns WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	return nil
}
