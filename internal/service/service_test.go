package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/repository/memory"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	mu         sync.Mutex
	messages   []domain.Message
	revoked    map[uuid.UUID][]uuid.UUID
	restricted []uuid.UUID
	deleted    []uuid.UUID
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{revoked: make(map[uuid.UUID][]uuid.UUID)}
}

func (n *fakeNotifier) NotifyMessage(msg *domain.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, *msg)
}

func (n *fakeNotifier) NotifyAccessRevoked(chatID uuid.UUID, userIDs []uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.revoked[chatID] = append(n.revoked[chatID], userIDs...)
}

func (n *fakeNotifier) NotifyChatRestricted(chat *domain.Chat) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.restricted = append(n.restricted, chat.ID)
}

func (n *fakeNotifier) NotifyChatDeleted(chatID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, chatID)
}

type recordingPublisher struct {
	mu    sync.Mutex
	kinds []string
}

func (p *recordingPublisher) PublishMessage(ctx context.Context, kind string, msg *domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
	return nil
}

// env wires every service over one in-memory store.
type env struct {
	store       *memory.Store
	notifier    *fakeNotifier
	publisher   *recordingPublisher
	auth        *AuthService
	workspaces  *WorkspaceService
	chats       *ChatService
	messages    *MessageService
	invitations *InvitationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	e := &env{
		store:     store,
		notifier:  newFakeNotifier(),
		publisher: &recordingPublisher{},
	}
	e.auth = NewAuthService(store.Users(), "test-secret")
	e.workspaces = NewWorkspaceService(store.Workspaces(), store.Chats(), store.Invitations(), store.Users())
	e.chats = NewChatService(store.Chats(), store.Workspaces())
	e.messages = NewMessageService(store.Messages(), store.Chats(), store.Workspaces(), zap.NewNop())
	e.invitations = NewInvitationService(store.Invitations(), store.Workspaces())

	e.workspaces.SetNotifier(e.notifier)
	e.chats.SetNotifier(e.notifier)
	e.messages.SetNotifier(e.notifier)
	e.messages.SetPublisher(e.publisher)
	return e
}

func (e *env) register(t *testing.T, name string) *domain.User {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), RegisterInput{
		Email:       name + "@example.com",
		Username:    name,
		DisplayName: name,
		Password:    "password123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return resp.User
}

// workspaceWith creates a workspace owned by owner and adds the other users
// as plain members.
func (e *env) workspaceWith(t *testing.T, owner *domain.User, members ...*domain.User) *domain.Workspace {
	t.Helper()
	ctx := context.Background()
	ws, err := e.workspaces.Create(ctx, owner.ID, CreateWorkspaceInput{Name: "acme"})
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	for _, m := range members {
		err := e.store.Workspaces().AddMember(ctx, ws.ID, domain.WorkspaceMember{UserID: m.ID, Role: domain.WorkspaceRoleMember})
		if err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	ws, _ = e.store.Workspaces().GetByID(ctx, ws.ID)
	return ws
}

func strPtr(s string) *string { return &s }
