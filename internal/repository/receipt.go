package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teamhub/internal/logger"
	"github.com/teamhub/internal/model"
)

// ReceiptRepository is the durable read-receipt ledger: one row per
// (message, recipient), the sole source of truth for unread counts.
type ReceiptRepository struct {
	pool *pgxpool.Pool
}

func NewReceiptRepository(pool *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{pool: pool}
}

// CreateUnread upserts an unread receipt keyed by (user_id, message_id).
// ON CONFLICT DO NOTHING keeps a reconciliation re-run from reverting a
// receipt that was already marked read.
func (r *ReceiptRepository) CreateUnread(ctx context.Context, userID, messageID, projectID string) error {
	defer logger.DeferLogDuration("receipt.CreateUnread", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO read_receipts (user_id, message_id, project_id, read)
		 VALUES ($1, $2, $3, false) ON CONFLICT DO NOTHING`,
		userID, messageID, projectID,
	)
	if err != nil {
		return fmt.Errorf("receiptRepo.CreateUnread: %w", err)
	}
	return nil
}

// MarkProjectRead flips all of the user's unread receipts in a project to
// read, stamping read_at. Returns how many rows actually flipped; already-read
// rows are untouched (the false -> true transition is monotonic).
func (r *ReceiptRepository) MarkProjectRead(ctx context.Context, projectID, userID string, readAt time.Time) (int64, error) {
	defer logger.DeferLogDuration("receipt.MarkProjectRead", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE read_receipts SET read = true, read_at = $1
		 WHERE project_id = $2 AND user_id = $3 AND read = false`,
		readAt, projectID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("receiptRepo.MarkProjectRead: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetByMessage returns all receipts for one message.
func (r *ReceiptRepository) GetByMessage(ctx context.Context, messageID string) ([]model.ReadReceipt, error) {
	defer logger.DeferLogDuration("receipt.GetByMessage", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, message_id, project_id, read, read_at
		 FROM read_receipts WHERE message_id = $1`, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("receiptRepo.GetByMessage query: %w", err)
	}
	defer rows.Close()

	receipts := make([]model.ReadReceipt, 0, 8)
	for rows.Next() {
		var rr model.ReadReceipt
		if err := rows.Scan(&rr.UserID, &rr.MessageID, &rr.ProjectID, &rr.Read, &rr.ReadAt); err != nil {
			return nil, fmt.Errorf("receiptRepo.GetByMessage scan: %w", err)
		}
		receipts = append(receipts, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("receiptRepo.GetByMessage rows: %w", err)
	}
	return receipts, nil
}

// CountUnreadByProject counts unread receipt rows per project for every
// project the user belongs to, including projects with zero unread. Computed
// live on every call; there is no cached counter to drift.
func (r *ReceiptRepository) CountUnreadByProject(ctx context.Context, userID string) ([]model.UnreadCount, error) {
	defer logger.DeferLogDuration("receipt.CountUnreadByProject", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, COUNT(rr.message_id) FILTER (WHERE rr.read = false)
		 FROM projects p
		 JOIN project_members pm ON pm.project_id = p.id AND pm.user_id = $1
		 LEFT JOIN read_receipts rr ON rr.project_id = p.id AND rr.user_id = $1
		 GROUP BY p.id, p.name`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("receiptRepo.CountUnreadByProject query: %w", err)
	}
	defer rows.Close()

	counts := make([]model.UnreadCount, 0, 16)
	for rows.Next() {
		var c model.UnreadCount
		if err := rows.Scan(&c.ProjectID, &c.ProjectName, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("receiptRepo.CountUnreadByProject scan: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("receiptRepo.CountUnreadByProject rows: %w", err)
	}
	return counts, nil
}
