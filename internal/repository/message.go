package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teamhub/internal/logger"
	"github.com/teamhub/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, project_id, sender_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ProjectID, m.SenderID, m.Content, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

// GetProjectMessages returns messages newest-first with sender info attached.
// Callers that present chronologically reverse the slice themselves.
func (r *MessageRepository) GetProjectMessages(ctx context.Context, projectID string, limit, offset int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.GetProjectMessages", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.project_id, m.sender_id, m.content, m.created_at,
		        u.id, u.username, u.avatar_url
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.project_id = $1
		 ORDER BY m.created_at DESC
		 LIMIT $2 OFFSET $3`, projectID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetProjectMessages query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		sender := &model.UserPublic{}
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.SenderID, &m.Content, &m.CreatedAt,
			&sender.ID, &sender.Username, &sender.AvatarURL); err != nil {
			return nil, fmt.Errorf("msgRepo.GetProjectMessages scan: %w", err)
		}
		m.Sender = sender
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.GetProjectMessages rows: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) CountProjectMessages(ctx context.Context, projectID string) (int, error) {
	defer logger.DeferLogDuration("msg.CountProjectMessages", time.Now())()
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE project_id = $1`, projectID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.CountProjectMessages: %w", err)
	}
	return count, nil
}
