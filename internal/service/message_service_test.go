package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/authz"
	"github.com/vedran77/teamchat/internal/domain"
)

func TestMessageService_GroupChatScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.register(t, "alice"), e.register(t, "bob")
	ws := e.workspaceWith(t, a, b)

	if owner, _ := ws.Member(a.ID); owner.Role != domain.WorkspaceRoleOwner {
		t.Fatalf("creator role = %q", owner.Role)
	}

	g, err := e.chats.Create(ctx, a.ID, CreateChatInput{WorkspaceID: ws.ID, Name: "g", Visibility: domain.VisibilityPrivate})
	if err != nil {
		t.Fatal(err)
	}
	if role, _ := authz.ChatMemberRole(g, a.ID); role != domain.ChatRoleOwner {
		t.Fatalf("creator chat role = %q", role)
	}
	if _, err := e.messages.Send(ctx, b.ID, g.ID, SendMessageInput{Text: strPtr("too early")}); !errors.Is(err, authz.ErrNotChatMember) {
		t.Fatalf("send before being added = %v", err)
	}
	if _, err := e.chats.AddMembers(ctx, a.ID, g.ID, []uuid.UUID{b.ID}); err != nil {
		t.Fatal(err)
	}

	msg, err := e.messages.Send(ctx, b.ID, g.ID, SendMessageInput{Text: strPtr("  hi ")})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "hi" || msg.IsEdited() || msg.IsDeleted() {
		t.Fatalf("sent message = %+v", msg)
	}
	if len(e.notifier.messages) != 1 || e.notifier.messages[0].ID != msg.ID {
		t.Fatalf("broadcasts after send = %+v", e.notifier.messages)
	}

	edited, err := e.messages.Edit(ctx, b.ID, msg.ID, EditMessageInput{Text: strPtr("hello")})
	if err != nil {
		t.Fatal(err)
	}
	if edited.Text != "hello" || edited.UpdatedAt.Equal(edited.CreatedAt) || !edited.IsEdited() {
		t.Fatalf("edited message = %+v", edited)
	}

	if _, err := e.messages.Delete(ctx, a.ID, msg.ID); !errors.Is(err, authz.ErrNotMessageSender) {
		t.Fatalf("delete by chat owner = %v", err)
	}
	list, _ := e.messages.List(ctx, a.ID, g.ID)
	if len(list) != 1 || list[0].Text != "hello" || list[0].IsDeleted() {
		t.Fatalf("message changed by non-sender: %+v", list)
	}

	want := []string{MessageCreated, MessageEdited}
	if len(e.publisher.kinds) != len(want) {
		t.Fatalf("published %v, want %v", e.publisher.kinds, want)
	}
	for i := range want {
		if e.publisher.kinds[i] != want[i] {
			t.Fatalf("published %v, want %v", e.publisher.kinds, want)
		}
	}
}

func TestMessageService_PublicChatReadOnlyUntilPostable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, c, outsider := e.register(t, "alice"), e.register(t, "carol"), e.register(t, "dave")
	ws := e.workspaceWith(t, a, c)
	g, _ := e.chats.Create(ctx, a.ID, CreateChatInput{WorkspaceID: ws.ID, Name: "general"})

	// Public chats are open to every workspace member.
	if _, err := e.messages.Send(ctx, c.ID, g.ID, SendMessageInput{Text: strPtr("hey")}); err != nil {
		t.Fatalf("workspace member posting to public chat: %v", err)
	}
	if _, err := e.messages.List(ctx, outsider.ID, g.ID); !errors.Is(err, authz.ErrNotWorkspaceMember) {
		t.Fatalf("outsider reading public chat = %v", err)
	}
	if _, err := e.messages.Send(ctx, outsider.ID, g.ID, SendMessageInput{Text: strPtr("hey")}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("outsider posting = %v", err)
	}
}

func TestMessageService_SendValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.register(t, "alice")
	ws := e.workspaceWith(t, a)
	g, _ := e.chats.Create(ctx, a.ID, CreateChatInput{WorkspaceID: ws.ID, Name: "general"})

	tests := []struct {
		name  string
		input SendMessageInput
		want  error
	}{
		{"nothing", SendMessageInput{}, ErrEmptyMessage},
		{"blank text", SendMessageInput{Text: strPtr("   ")}, ErrEmptyMessage},
		{"attachment only", SendMessageInput{Attachment: strPtr("https://files/a.png")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.messages.Send(ctx, a.ID, g.ID, tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Send() = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := e.messages.Send(ctx, a.ID, uuid.New(), SendMessageInput{Text: strPtr("x")}); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("send to unknown chat = %v", err)
	}
}

func TestMessageService_DeleteClears(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.register(t, "alice")
	ws := e.workspaceWith(t, a)
	g, _ := e.chats.Create(ctx, a.ID, CreateChatInput{WorkspaceID: ws.ID, Name: "general"})
	msg, _ := e.messages.Send(ctx, a.ID, g.ID, SendMessageInput{Text: strPtr("bye"), Attachment: strPtr("https://files/x")})

	deleted, err := e.messages.Delete(ctx, a.ID, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted.Text != "" || deleted.Attachment != "" || !deleted.IsDeleted() || deleted.IsEdited() {
		t.Fatalf("deleted message = %+v", deleted)
	}

	stored, _ := e.store.Messages().GetByID(ctx, msg.ID)
	if stored == nil || !stored.IsDeleted() {
		t.Fatalf("deleted message should remain stored: %+v", stored)
	}
	if got := e.notifier.messages[len(e.notifier.messages)-1]; got.ID != msg.ID || !got.IsDeleted() {
		t.Fatalf("last broadcast = %+v", got)
	}

	if _, err := e.messages.Edit(ctx, a.ID, uuid.New(), EditMessageInput{Text: strPtr("x")}); !errors.Is(err, authz.ErrNotMessageSender) {
		t.Fatalf("edit of unknown message = %v", err)
	}
	if _, err := e.messages.Edit(ctx, a.ID, msg.ID, EditMessageInput{}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("empty edit = %v", err)
	}
}

func TestMessageService_Get(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, c := e.register(t, "alice"), e.register(t, "bob"), e.register(t, "carol")
	ws := e.workspaceWith(t, a, b, c)
	g, _ := e.chats.Create(ctx, a.ID, CreateChatInput{WorkspaceID: ws.ID, Name: "core", Visibility: domain.VisibilityPrivate})
	if _, err := e.chats.AddMembers(ctx, a.ID, g.ID, []uuid.UUID{b.ID}); err != nil {
		t.Fatal(err)
	}
	msg, _ := e.messages.Send(ctx, a.ID, g.ID, SendMessageInput{Text: strPtr("ship it")})
	if _, err := e.messages.Delete(ctx, a.ID, msg.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		caller uuid.UUID
		id     uuid.UUID
		want   error
	}{
		{"member reads deleted message", b.ID, msg.ID, nil},
		{"non-member of private chat", c.ID, msg.ID, authz.ErrNotChatMember},
		{"unknown message", a.ID, uuid.New(), ErrMessageNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.messages.Get(ctx, tt.caller, tt.id)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Get() = %v, want %v", err, tt.want)
			}
			if tt.want != nil {
				return
			}
			if got.ID != msg.ID || got.Text != "" || !got.IsDeleted() {
				t.Fatalf("got %+v, want the cleared record", got)
			}
		})
	}
}
