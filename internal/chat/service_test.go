package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teamhub/internal/apperr"
	"github.com/teamhub/internal/model"
)

type fakeProjects struct {
	exists  map[string]bool
	members map[string][]string
}

func (f *fakeProjects) Exists(_ context.Context, projectID string) (bool, error) {
	return f.exists[projectID], nil
}

func (f *fakeProjects) IsMember(_ context.Context, projectID, userID string) (bool, error) {
	for _, id := range f.members[projectID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProjects) GetMemberIDs(_ context.Context, projectID string) ([]string, error) {
	return f.members[projectID], nil
}

type fakeMessages struct {
	mu       sync.Mutex
	messages []model.Message
}

func (f *fakeMessages) Create(_ context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, *m)
	return nil
}

// GetProjectMessages returns newest-first, like the real repository.
func (f *fakeMessages) GetProjectMessages(_ context.Context, projectID string, limit, offset int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Message
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].ProjectID == projectID {
			all = append(all, f.messages[i])
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeMessages) CountProjectMessages(_ context.Context, projectID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

type receiptKey struct{ userID, messageID string }

type fakeReceipts struct {
	mu      sync.Mutex
	receipt map[receiptKey]bool // value = read flag
	project map[receiptKey]string
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{receipt: make(map[receiptKey]bool), project: make(map[receiptKey]string)}
}

func (f *fakeReceipts) CreateUnread(_ context.Context, userID, messageID, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := receiptKey{userID, messageID}
	if _, ok := f.receipt[k]; ok {
		return nil
	}
	f.receipt[k] = false
	f.project[k] = projectID
	return nil
}

func (f *fakeReceipts) MarkProjectRead(_ context.Context, projectID, userID string, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var flipped int64
	for k, read := range f.receipt {
		if k.userID == userID && f.project[k] == projectID && !read {
			f.receipt[k] = true
			flipped++
		}
	}
	return flipped, nil
}

func (f *fakeReceipts) CountUnreadByProject(_ context.Context, userID string) ([]model.UnreadCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byProject := make(map[string]int)
	for k, read := range f.receipt {
		if k.userID == userID && !read {
			byProject[f.project[k]]++
		}
	}
	var out []model.UnreadCount
	for pid, n := range byProject {
		out = append(out, model.UnreadCount{ProjectID: pid, UnreadCount: n})
	}
	return out, nil
}

func (f *fakeReceipts) unreadFor(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k, read := range f.receipt {
		if k.userID == userID && !read {
			n++
		}
	}
	return n
}

type fakeUsers struct{}

func (fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	return &model.User{ID: id, Username: "user-" + id}, nil
}

type fakeBroadcaster struct {
	mu        sync.Mutex
	broadcast []string // project ids of BroadcastNewMessage calls
	readSync  []string // "user/project" of NotifyMessagesRead calls
}

func (f *fakeBroadcaster) BroadcastNewMessage(projectID string, _ *model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, projectID)
}

func (f *fakeBroadcaster) NotifyMessagesRead(userID, projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readSync = append(f.readSync, userID+"/"+projectID)
}

func (f *fakeBroadcaster) broadcasts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcast)
}

func (f *fakeBroadcaster) readSyncs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.readSync...)
}

type fakePresence struct{ online map[string]bool }

func (f *fakePresence) IsOnline(userID string) bool { return f.online[userID] }

type fakeOffline struct{ pushed chan string }

func (f *fakeOffline) Notify(_ context.Context, userID, _, _ string, _ map[string]string) {
	f.pushed <- userID
}

func newTestService() (*Service, *fakeProjects, *fakeMessages, *fakeReceipts, *fakeBroadcaster, *fakePresence, *fakeOffline) {
	projects := &fakeProjects{
		exists:  map[string]bool{"p1": true},
		members: map[string][]string{"p1": {"alice", "bob", "carol"}},
	}
	messages := &fakeMessages{}
	receipts := newFakeReceipts()
	live := &fakeBroadcaster{}
	presence := &fakePresence{online: map[string]bool{}}
	offline := &fakeOffline{pushed: make(chan string, 16)}
	svc := NewService(projects, messages, receipts, fakeUsers{}, live, presence, offline)
	return svc, projects, messages, receipts, live, presence, offline
}

func TestSendMessageCreatesReceiptsForOthers(t *testing.T) {
	svc, _, messages, receipts, live, _, _ := newTestService()

	m, err := svc.SendMessage(context.Background(), "alice", "p1", "hello")
	require.NoError(t, err)
	require.NotEmpty(t, m.ID)
	require.Equal(t, "hello", m.Content)
	require.NotNil(t, m.Sender)
	require.Equal(t, "user-alice", m.Sender.Username)

	require.Len(t, messages.messages, 1)
	require.Equal(t, 0, receipts.unreadFor("alice"), "sender's own message is implicitly read")
	require.Equal(t, 1, receipts.unreadFor("bob"))
	require.Equal(t, 1, receipts.unreadFor("carol"))
	require.Equal(t, 1, live.broadcasts())
}

func TestSendMessageRejectsNonMember(t *testing.T) {
	svc, _, messages, receipts, live, _, _ := newTestService()

	_, err := svc.SendMessage(context.Background(), "mallory", "p1", "hi")
	require.Error(t, err)
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	require.Empty(t, messages.messages)
	require.Equal(t, 0, receipts.unreadFor("bob"))
	require.Equal(t, 0, live.broadcasts())
}

func TestSendMessageUnknownProject(t *testing.T) {
	svc, _, _, _, _, _, _ := newTestService()

	_, err := svc.SendMessage(context.Background(), "alice", "nope", "hi")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSendMessageRejectsBlankContent(t *testing.T) {
	svc, _, messages, _, _, _, _ := newTestService()

	_, err := svc.SendMessage(context.Background(), "alice", "p1", "   \n\t ")
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Empty(t, messages.messages)
}

func TestSendMessagePushesOfflineMembersOnly(t *testing.T) {
	svc, _, _, _, _, presence, offline := newTestService()
	presence.online["bob"] = true // bob connected, carol not

	_, err := svc.SendMessage(context.Background(), "alice", "p1", "ping")
	require.NoError(t, err)

	select {
	case uid := <-offline.pushed:
		require.Equal(t, "carol", uid)
	case <-time.After(time.Second):
		t.Fatal("expected a push for the offline member")
	}
	select {
	case uid := <-offline.pushed:
		t.Fatalf("unexpected push for %s", uid)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGetMessagesChronologicalOrder(t *testing.T) {
	svc, _, _, _, _, _, _ := newTestService()

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(context.Background(), "alice", "p1", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	page, err := svc.GetMessages(context.Background(), "bob", "p1", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	require.Equal(t, "msg 0", page.Messages[0].Content)
	require.Equal(t, "msg 2", page.Messages[2].Content)
}

func TestGetMessagesPagination(t *testing.T) {
	svc, _, _, _, _, _, _ := newTestService()

	for i := 0; i < 51; i++ {
		_, err := svc.SendMessage(context.Background(), "alice", "p1", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	// Default limit is 50; page 1 holds the 50 newest.
	page, err := svc.GetMessages(context.Background(), "bob", "p1", 1, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 50)
	require.Equal(t, 51, page.Pagination.Total)
	require.Equal(t, 2, page.Pagination.Pages)
	require.Equal(t, "msg 1", page.Messages[0].Content)
	require.Equal(t, "msg 50", page.Messages[49].Content)

	page2, err := svc.GetMessages(context.Background(), "bob", "p1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page2.Messages, 1)
	require.Equal(t, "msg 0", page2.Messages[0].Content)
}

func TestGetMessagesMarksRead(t *testing.T) {
	svc, _, _, receipts, live, _, _ := newTestService()

	_, err := svc.SendMessage(context.Background(), "alice", "p1", "unread for bob")
	require.NoError(t, err)
	require.Equal(t, 1, receipts.unreadFor("bob"))

	_, err = svc.GetMessages(context.Background(), "bob", "p1", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 0, receipts.unreadFor("bob"), "viewing marks read")
	require.Equal(t, 1, receipts.unreadFor("carol"), "other members keep their receipts")
	require.Equal(t, []string{"bob/p1"}, live.readSyncs())
}

func TestMarkMessagesReadIdempotent(t *testing.T) {
	svc, _, _, _, live, _, _ := newTestService()

	_, err := svc.SendMessage(context.Background(), "alice", "p1", "x")
	require.NoError(t, err)

	require.NoError(t, svc.MarkMessagesRead(context.Background(), "bob", "p1"))
	require.NoError(t, svc.MarkMessagesRead(context.Background(), "bob", "p1"))
	// Only the first call flipped rows, so only one sync event went out.
	require.Equal(t, []string{"bob/p1"}, live.readSyncs())
}

func TestGetUnreadCounts(t *testing.T) {
	svc, _, _, _, _, _, _ := newTestService()

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(context.Background(), "alice", "p1", "n")
		require.NoError(t, err)
	}

	counts, err := svc.GetUnreadCounts(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, 3, counts["p1"].UnreadCount)

	require.NoError(t, svc.MarkMessagesRead(context.Background(), "bob", "p1"))
	counts, err = svc.GetUnreadCounts(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, 0, counts["p1"].UnreadCount)
}
