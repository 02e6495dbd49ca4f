package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/repository"
	"github.com/vedran77/teamchat/internal/repository/memory"
	"github.com/vedran77/teamchat/internal/service"
	"go.uber.org/zap"
)

type harness struct {
	store      *memory.Store
	registry   *Registry
	workspaces *service.WorkspaceService
	chats      *service.ChatService
	messages   *service.MessageService
	gateway    *Gateway
	ws         *domain.Workspace
}

func newHarness(t *testing.T, cfg GatewayConfig, users ...uuid.UUID) *harness {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()
	store := memory.NewStore()

	h := &harness{store: store, registry: NewRegistry(log)}
	h.workspaces = service.NewWorkspaceService(store.Workspaces(), store.Chats(), store.Invitations(), store.Users())
	h.chats = service.NewChatService(store.Chats(), store.Workspaces())
	h.messages = service.NewMessageService(store.Messages(), store.Chats(), store.Workspaces(), log)
	notifier := NewNotifier(h.registry, log)
	h.workspaces.SetNotifier(notifier)
	h.chats.SetNotifier(notifier)
	h.messages.SetNotifier(notifier)
	h.gateway = NewGateway(h.registry, h.chats, h.messages, cfg, log)

	ws := &domain.Workspace{ID: uuid.New(), Name: "acme"}
	for i, u := range users {
		role := domain.WorkspaceRoleMember
		if i == 0 {
			role = domain.WorkspaceRoleOwner
		}
		ws.Members = append(ws.Members, domain.WorkspaceMember{UserID: u, Role: role})
	}
	if err := store.Workspaces().Create(ctx, ws); err != nil {
		t.Fatal(err)
	}
	h.ws = ws
	return h
}

func (h *harness) connect(user uuid.UUID) (*fakeConn, *Session) {
	c := newFakeConn(user)
	return c, h.gateway.Open(c)
}

func frame(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(Event{Type: typ, Payload: raw})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func receivedMessages(t *testing.T, c *fakeConn) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, evt := range c.events(t) {
		if evt.Type != EventReceiveMessage {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(evt.Payload, &m); err != nil {
			t.Fatal(err)
		}
		out = append(out, m)
	}
	return out
}

func TestGateway_GroupChatScenario(t *testing.T) {
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	h := newHarness(t, GatewayConfig{}, a, b, c)

	g, err := h.chats.Create(ctx, a, service.CreateChatInput{WorkspaceID: h.ws.ID, Name: "g", Visibility: domain.VisibilityPrivate})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.chats.AddMembers(ctx, a, g.ID, []uuid.UUID{b}); err != nil {
		t.Fatal(err)
	}

	connA, sessA := h.connect(a)
	connB, sessB := h.connect(b)
	connC, sessC := h.connect(c)
	room := RoomPayload{ChatID: g.ID.String()}
	sessA.Handle(ctx, frame(t, EventJoinRoom, room))
	sessB.Handle(ctx, frame(t, EventJoinRoom, room))
	sessC.Handle(ctx, frame(t, EventJoinRoom, room))

	if subs := h.registry.Subscribers(g.ID); len(subs) != 2 {
		t.Fatalf("subscribers = %v, want A and B only", subs)
	}
	if len(h.registry.Rooms(connC.ID())) != 0 {
		t.Fatal("non-member joined a private room")
	}

	sessB.Handle(ctx, frame(t, EventSendMessage, SendMessagePayload{ChatID: g.ID.String(), Text: ptr("hi")}))
	got := receivedMessages(t, connA)
	if len(got) != 1 || got[0]["text"] != "hi" || got[0]["sender"] != b.String() {
		t.Fatalf("A received %v", got)
	}
	if len(receivedMessages(t, connC)) != 0 {
		t.Fatal("non-subscriber received a broadcast")
	}
	msgID := got[0]["_id"].(string)

	sessB.Handle(ctx, frame(t, EventEditMessage, EditMessagePayload{MessageID: msgID, Text: ptr("hello")}))
	got = receivedMessages(t, connA)
	if len(got) != 2 || got[1]["text"] != "hello" || got[1]["isEdited"] != true {
		t.Fatalf("after edit A received %v", got)
	}
	if got[1]["createdAt"] == got[1]["updatedAt"] {
		t.Fatal("updatedAt must move on edit")
	}

	// The chat owner is not the sender.
	sessA.Handle(ctx, frame(t, EventDeleteMessage, DeleteMessagePayload{MessageID: msgID}))
	if n := len(receivedMessages(t, connB)); n != 2 {
		t.Fatalf("B received %d messages, want 2", n)
	}
	stored, _ := h.store.Messages().GetByID(ctx, uuid.MustParse(msgID))
	if stored.Text != "hello" || stored.IsDeleted() {
		t.Fatalf("message changed by non-sender: %+v", stored)
	}

	sessB.Handle(ctx, frame(t, EventDeleteMessage, DeleteMessagePayload{MessageID: msgID}))
	got = receivedMessages(t, connA)
	if len(got) != 3 || got[2]["isDeleted"] != true || got[2]["text"] != "" {
		t.Fatalf("after delete A received %v", got)
	}
}

func TestGateway_PublicRoomOpenToWorkspace(t *testing.T) {
	ctx := context.Background()
	a, c, outsider := uuid.New(), uuid.New(), uuid.New()
	h := newHarness(t, GatewayConfig{}, a, c)
	g, _ := h.chats.Create(ctx, a, service.CreateChatInput{WorkspaceID: h.ws.ID, Name: "general"})

	connC, sessC := h.connect(c)
	connX, sessX := h.connect(outsider)
	room := RoomPayload{ChatID: g.ID.String()}
	sessC.Handle(ctx, frame(t, EventJoinRoom, room))
	sessX.Handle(ctx, frame(t, EventJoinRoom, room))

	if len(h.registry.Rooms(connC.ID())) != 1 {
		t.Fatal("workspace member could not join public room")
	}
	if len(h.registry.Rooms(connX.ID())) != 0 {
		t.Fatal("outsider joined public room")
	}
}

func TestGateway_ErrorsAreSwallowedByDefault(t *testing.T) {
	ctx := context.Background()
	a := uuid.New()
	h := newHarness(t, GatewayConfig{}, a)
	conn, sess := h.connect(a)

	sess.Handle(ctx, []byte("not json"))
	sess.Handle(ctx, frame(t, "bogus", struct{}{}))
	sess.Handle(ctx, frame(t, EventSendMessage, SendMessagePayload{ChatID: "nope"}))
	sess.Handle(ctx, frame(t, EventJoinRoom, RoomPayload{ChatID: uuid.NewString()}))

	if n := conn.count(); n != 0 {
		t.Fatalf("connection received %d frames, want none", n)
	}

	sess.Handle(ctx, frame(t, EventPing, struct{}{}))
	if evts := conn.events(t); len(evts) != 1 || evts[0].Type != EventPong {
		t.Fatalf("ping reply = %+v", evts)
	}
}

func TestGateway_ReportErrors(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	h := newHarness(t, GatewayConfig{ReportErrors: true}, a, b)
	g, _ := h.chats.Create(ctx, a, service.CreateChatInput{WorkspaceID: h.ws.ID, Name: "secret", Visibility: domain.VisibilityPrivate})

	connA, sessA := h.connect(a)
	connB, sessB := h.connect(b)
	sessA.Handle(ctx, frame(t, EventJoinRoom, RoomPayload{ChatID: g.ID.String()}))

	tests := []struct {
		name  string
		frame []byte
		code  string
	}{
		{"malformed", []byte("{"), "VALIDATION_ERROR"},
		{"unknown event", frame(t, "typing", struct{}{}), "VALIDATION_ERROR"},
		{"missing content", frame(t, EventSendMessage, SendMessagePayload{ChatID: g.ID.String()}), "VALIDATION_ERROR"},
		{"text too long", frame(t, EventEditMessage, EditMessagePayload{MessageID: uuid.NewString(), Text: ptr(fmt.Sprintf("%0101d", 0))}), "VALIDATION_ERROR"},
		{"private chat", frame(t, EventJoinRoom, RoomPayload{ChatID: g.ID.String()}), "FORBIDDEN"},
		{"unknown chat", frame(t, EventJoinRoom, RoomPayload{ChatID: uuid.NewString()}), "NOT_FOUND"},
		{"foreign message", frame(t, EventDeleteMessage, DeleteMessagePayload{MessageID: uuid.NewString()}), "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(connB.events(t))
			sessB.Handle(ctx, tt.frame)
			evts := connB.events(t)
			if len(evts) != before+1 {
				t.Fatalf("got %d new frames, want 1", len(evts)-before)
			}
			last := evts[len(evts)-1]
			var p ErrorPayload
			if err := json.Unmarshal(last.Payload, &p); err != nil {
				t.Fatal(err)
			}
			if last.Type != EventError || p.Code != tt.code {
				t.Fatalf("got %s %+v, want error %s", last.Type, p, tt.code)
			}
		})
	}

	// Errors go to the offending connection only.
	if n := connA.count(); n != 0 {
		t.Fatalf("bystander received %d frames", n)
	}
}

func TestGateway_RateLimit(t *testing.T) {
	ctx := context.Background()
	a := uuid.New()
	h := newHarness(t, GatewayConfig{ReportErrors: true, IntentsPerSecond: 0.001, IntentBurst: 2}, a)
	g, _ := h.chats.Create(ctx, a, service.CreateChatInput{WorkspaceID: h.ws.ID, Name: "general"})
	conn, sess := h.connect(a)

	join := frame(t, EventJoinRoom, RoomPayload{ChatID: g.ID.String()})
	sess.Handle(ctx, join)
	sess.Handle(ctx, join)
	sess.Handle(ctx, join)

	evts := conn.events(t)
	if len(evts) != 1 || evts[0].Type != EventError {
		t.Fatalf("events = %+v", evts)
	}
	var p ErrorPayload
	_ = json.Unmarshal(evts[0].Payload, &p)
	if p.Code != "RATE_LIMITED" {
		t.Fatalf("code = %q", p.Code)
	}

	// Pings are never limited.
	sess.Handle(ctx, frame(t, EventPing, struct{}{}))
	if evts := conn.events(t); evts[len(evts)-1].Type != EventPong {
		t.Fatal("ping was rate limited")
	}
}

func TestGateway_AccessLossEvicts(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	h := newHarness(t, GatewayConfig{}, a, b)

	public, _ := h.chats.Create(ctx, a, service.CreateChatInput{WorkspaceID: h.ws.ID, Name: "general"})
	connB, sessB := h.connect(b)
	sessB.Handle(ctx, frame(t, EventJoinRoom, RoomPayload{ChatID: public.ID.String()}))
	if len(h.registry.Rooms(connB.ID())) != 1 {
		t.Fatal("join failed")
	}

	private := domain.VisibilityPrivate
	if _, err := h.chats.Update(ctx, a, public.ID, service.UpdateChatInput{Visibility: &private}); err != nil {
		t.Fatal(err)
	}
	if len(h.registry.Rooms(connB.ID())) != 0 {
		t.Fatal("non-member kept a subscription after the chat became private")
	}

	if _, err := h.messages.Send(ctx, a, public.ID, service.SendMessageInput{Text: ptr("secret")}); err != nil {
		t.Fatal(err)
	}
	if len(receivedMessages(t, connB)) != 0 {
		t.Fatal("evicted connection received a private message")
	}
}

func TestGateway_RemovedMemberLeavesPublicRooms(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	h := newHarness(t, GatewayConfig{}, a, b)

	general, _ := h.chats.Create(ctx, a, service.CreateChatInput{WorkspaceID: h.ws.ID, Name: "general"})
	dm, _, err := h.chats.CreateDM(ctx, a, h.ws.ID, b)
	if err != nil {
		t.Fatal(err)
	}
	connB, sessB := h.connect(b)
	sessB.Handle(ctx, frame(t, EventJoinRoom, RoomPayload{ChatID: general.ID.String()}))
	sessB.Handle(ctx, frame(t, EventJoinRoom, RoomPayload{ChatID: dm.ID.String()}))
	if len(h.registry.Rooms(connB.ID())) != 2 {
		t.Fatal("join failed")
	}

	if _, err := h.workspaces.RemoveMember(ctx, a, h.ws.ID, b); err != nil {
		t.Fatal(err)
	}
	if rooms := h.registry.Rooms(connB.ID()); len(rooms) != 1 || rooms[0] != dm.ID {
		t.Fatalf("rooms after removal = %v, want only the dm", rooms)
	}

	for _, text := range []string{"one", "two"} {
		if _, err := h.messages.Send(ctx, a, general.ID, service.SendMessageInput{Text: ptr(text)}); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(receivedMessages(t, connB)); n != 0 {
		t.Fatalf("removed member received %d public messages", n)
	}

	// Rejoining is refused now that bob is outside the workspace.
	sessB.Handle(ctx, frame(t, EventJoinRoom, RoomPayload{ChatID: general.ID.String()}))
	if len(h.registry.Rooms(connB.ID())) != 1 {
		t.Fatal("removed member rejoined a public room")
	}
}

// interruptedChats runs afterGet between the access check's chat lookup and
// the caller's next step, the window a concurrent eviction can land in.
type interruptedChats struct {
	repository.ChatRepository
	afterGet func()
}

func (c *interruptedChats) GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error) {
	chat, err := c.ChatRepository.GetByID(ctx, id)
	if c.afterGet != nil {
		c.afterGet()
	}
	return chat, err
}

func TestGateway_JoinRacingEviction(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	tests := []struct {
		name     string
		evict    func(h *harness, chatID uuid.UUID) func()
		joined   bool
		wantCode string
	}{
		{
			name: "access revoked mid-join",
			evict: func(h *harness, chatID uuid.UUID) func() {
				var once sync.Once
				return func() {
					once.Do(func() {
						if _, err := h.chats.RemoveMember(ctx, a, chatID, b); err != nil {
							t.Error(err)
						}
					})
				}
			},
			wantCode: "FORBIDDEN",
		},
		{
			name: "unrelated eviction retries",
			evict: func(h *harness, chatID uuid.UUID) func() {
				var once sync.Once
				return func() { once.Do(func() { h.registry.EvictUser(chatID, uuid.New()) }) }
			},
			joined: true,
		},
		{
			name: "evicted on every attempt",
			evict: func(h *harness, chatID uuid.UUID) func() {
				return func() { h.registry.EvictUser(chatID, b) }
			},
			wantCode: "CONFLICT",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, GatewayConfig{}, a, b)
			g, _ := h.chats.Create(ctx, a, service.CreateChatInput{WorkspaceID: h.ws.ID, Name: "g", Visibility: domain.VisibilityPrivate})
			if _, err := h.chats.AddMembers(ctx, a, g.ID, []uuid.UUID{b}); err != nil {
				t.Fatal(err)
			}

			chats := &interruptedChats{ChatRepository: h.store.Chats()}
			joinChats := service.NewChatService(chats, h.store.Workspaces())
			gw := NewGateway(h.registry, joinChats, h.messages, GatewayConfig{ReportErrors: true}, zap.NewNop())
			connB := newFakeConn(b)
			sessB := gw.Open(connB)

			chats.afterGet = tt.evict(h, g.ID)
			sessB.Handle(ctx, frame(t, EventJoinRoom, RoomPayload{ChatID: g.ID.String()}))

			subscribed := len(h.registry.Rooms(connB.ID())) == 1
			if subscribed != tt.joined {
				t.Fatalf("subscribed = %v, want %v", subscribed, tt.joined)
			}
			evts := connB.events(t)
			if tt.wantCode == "" {
				if len(evts) != 0 {
					t.Fatalf("unexpected frames %v", evts)
				}
				return
			}
			if len(evts) != 1 || evts[0].Type != EventError {
				t.Fatalf("frames = %v, want one error", evts)
			}
			var p ErrorPayload
			if err := json.Unmarshal(evts[0].Payload, &p); err != nil {
				t.Fatal(err)
			}
			if p.Code != tt.wantCode {
				t.Fatalf("code = %s, want %s", p.Code, tt.wantCode)
			}
		})
	}
}

func TestSession_CloseDropsOnce(t *testing.T) {
	a := uuid.New()
	h := newHarness(t, GatewayConfig{}, a)
	g, _ := h.chats.Create(context.Background(), a, service.CreateChatInput{WorkspaceID: h.ws.ID, Name: "general"})
	_, sess := h.connect(a)
	sess.Handle(context.Background(), frame(t, EventJoinRoom, RoomPayload{ChatID: g.ID.String()}))

	sess.Close()
	sess.Close()
	if h.registry.Connections() != 0 || len(h.registry.Subscribers(g.ID)) != 0 {
		t.Fatal("session close left registry state behind")
	}
}

func ptr(s string) *string { return &s }
