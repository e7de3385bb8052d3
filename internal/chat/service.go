// Package chat is the messaging orchestrator: it validates and authorizes
// sends, anchors them in the durable message store, maintains the read-receipt
// ledger and triggers fan-out plus offline push. Durability comes first; every
// live-delivery step after the append is best-effort.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teamhub/internal/apperr"
	"github.com/teamhub/internal/logger"
	"github.com/teamhub/internal/model"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// ProjectStore is the membership contract consumed from the project service.
type ProjectStore interface {
	Exists(ctx context.Context, projectID string) (bool, error)
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
	GetMemberIDs(ctx context.Context, projectID string) ([]string, error)
}

// MessageStore is the durable, ordered message log.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	// GetProjectMessages returns messages newest-first.
	GetProjectMessages(ctx context.Context, projectID string, limit, offset int) ([]model.Message, error)
	CountProjectMessages(ctx context.Context, projectID string) (int, error)
}

// ReceiptLedger is the durable per-(user, message) read/unread ledger.
type ReceiptLedger interface {
	CreateUnread(ctx context.Context, userID, messageID, projectID string) error
	MarkProjectRead(ctx context.Context, projectID, userID string, readAt time.Time) (int64, error)
	CountUnreadByProject(ctx context.Context, userID string) ([]model.UnreadCount, error)
}

// UserStore provides sender profiles for message population.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Broadcaster is the live fan-out surface (implemented by the socket layer).
// Calls are fire-and-forget: their outcome never affects the send result.
type Broadcaster interface {
	BroadcastNewMessage(projectID string, m *model.Message)
	NotifyMessagesRead(userID, projectID string)
}

// Presence reports whether a user has a live connection right now.
type Presence interface {
	IsOnline(userID string) bool
}

// OfflinePusher delivers best-effort pushes to users without a live
// connection. May be nil (pushes disabled).
type OfflinePusher interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

type Service struct {
	projects ProjectStore
	messages MessageStore
	receipts ReceiptLedger
	users    UserStore
	live     Broadcaster
	presence Presence
	offline  OfflinePusher
}

func NewService(
	projects ProjectStore,
	messages MessageStore,
	receipts ReceiptLedger,
	users UserStore,
	live Broadcaster,
	presence Presence,
	offline OfflinePusher,
) *Service {
	return &Service{
		projects: projects,
		messages: messages,
		receipts: receipts,
		users:    users,
		live:     live,
		presence: presence,
		offline:  offline,
	}
}

// Authorize checks that the project exists and the user belongs to it.
func (s *Service) Authorize(ctx context.Context, projectID, userID string) error {
	exists, err := s.projects.Exists(ctx, projectID)
	if err != nil {
		return apperr.Internal("failed to check project", err)
	}
	if !exists {
		return apperr.NotFound("project not found")
	}
	isMember, err := s.projects.IsMember(ctx, projectID, userID)
	if err != nil {
		return apperr.Internal("failed to check membership", err)
	}
	if !isMember {
		return apperr.Forbidden("not a project member")
	}
	return nil
}

// SendMessage runs the send pipeline: validate, authorize, durable append,
// receipt creation, room fan-out, offline push. The append is the correctness
// anchor: if it fails nothing downstream runs; once it succeeds, receipt and
// delivery failures degrade accuracy but never roll the message back.
func (s *Service) SendMessage(ctx context.Context, senderID, projectID, content string) (*model.Message, error) {
	defer logger.DeferLogDuration("chat.SendMessage", time.Now())()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("content must not be empty")
	}
	if err := s.Authorize(ctx, projectID, senderID); err != nil {
		return nil, err
	}

	m := &model.Message{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, apperr.Internal("failed to save message", err)
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		logger.Errorf("chat send: get sender user=%s: %v", senderID, err)
	} else {
		pub := sender.ToPublic()
		m.Sender = &pub
	}

	memberIDs, err := s.projects.GetMemberIDs(ctx, projectID)
	if err != nil {
		// Message is durable; receipts and fan-out are skipped, a later
		// reconciliation can repair the gap.
		logger.Errorf("chat send: get members project=%s: %v", projectID, err)
		return m, nil
	}

	// One unread receipt per member except the sender (the sender's own
	// message counts as implicitly read). Per-member failures are logged and
	// skipped; the upsert makes a repair re-run safe.
	for _, uid := range memberIDs {
		if uid == senderID {
			continue
		}
		if err := s.receipts.CreateUnread(ctx, uid, m.ID, projectID); err != nil {
			logger.Errorf("chat send: create receipt user=%s message=%s: %v", uid, m.ID, err)
		}
	}

	// Live fan-out to the room, sender included; the sender's client
	// reconciles by message id.
	s.live.BroadcastNewMessage(projectID, m)

	// Best-effort web push to members with no live connection.
	if s.offline != nil {
		title := "New message"
		if m.Sender != nil && m.Sender.Username != "" {
			title = m.Sender.Username
		}
		body := content
		if len(body) > 120 {
			body = body[:117] + "..."
		}
		data := map[string]string{"project_id": projectID, "message_id": m.ID}
		for _, uid := range memberIDs {
			if uid == senderID || s.presence.IsOnline(uid) {
				continue
			}
			uid := uid
			go s.offline.Notify(context.Background(), uid, title, body, data)
		}
	}

	return m, nil
}

// Pagination describes one page of a paginated listing.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// MessagePage is the result of GetMessages: one page in chronological
// (oldest-first) order plus pagination info.
type MessagePage struct {
	Messages   []model.Message `json:"messages"`
	Pagination Pagination      `json:"pagination"`
}

// GetMessages returns one page of the project's messages. Pages are counted
// from the newest message backwards (page 1 = most recent), but each page is
// returned oldest-first for presentation. Viewing marks read: the requester's
// unread receipts for this project are flipped, and their own other
// connections get a messages_read event.
func (s *Service) GetMessages(ctx context.Context, requesterID, projectID string, page, limit int) (*MessagePage, error) {
	defer logger.DeferLogDuration("chat.GetMessages", time.Now())()

	if err := s.Authorize(ctx, projectID, requesterID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	total, err := s.messages.CountProjectMessages(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal("failed to count messages", err)
	}

	offset := (page - 1) * limit
	messages, err := s.messages.GetProjectMessages(ctx, projectID, limit, offset)
	if err != nil {
		return nil, apperr.Internal("failed to get messages", err)
	}

	// Store order is newest-first; callers get chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	// Viewing marks read. A ledger failure here degrades the unread count
	// but must not lose the fetched page.
	if err := s.markRead(ctx, requesterID, projectID); err != nil {
		logger.Errorf("chat get: mark read project=%s user=%s: %v", projectID, requesterID, err)
	}

	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return &MessagePage{
		Messages:   messages,
		Pagination: Pagination{Total: total, Page: page, Limit: limit, Pages: pages},
	}, nil
}

// MarkMessagesRead flips the requester's unread receipts for the project and
// informs their own connections.
func (s *Service) MarkMessagesRead(ctx context.Context, userID, projectID string) error {
	defer logger.DeferLogDuration("chat.MarkMessagesRead", time.Now())()
	if err := s.Authorize(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.markRead(ctx, userID, projectID); err != nil {
		return apperr.Internal("failed to mark messages read", err)
	}
	return nil
}

func (s *Service) markRead(ctx context.Context, userID, projectID string) error {
	flipped, err := s.receipts.MarkProjectRead(ctx, projectID, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	if flipped > 0 {
		s.live.NotifyMessagesRead(userID, projectID)
	}
	return nil
}

// GetUnreadCounts returns, for every project the user belongs to, the number
// of unread receipt rows. Always computed fresh from the ledger.
func (s *Service) GetUnreadCounts(ctx context.Context, userID string) (map[string]model.UnreadCount, error) {
	defer logger.DeferLogDuration("chat.GetUnreadCounts", time.Now())()
	counts, err := s.receipts.CountUnreadByProject(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to count unread", err)
	}
	result := make(map[string]model.UnreadCount, len(counts))
	for _, c := range counts {
		result[c.ProjectID] = c
	}
	return result, nil
}
