package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/authz"
	"github.com/vedran77/teamchat/internal/domain"
)

func TestInvitationService_OwnerOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.register(t, "alice"), e.register(t, "bob")
	ws := e.workspaceWith(t, a, b)

	if _, err := e.invitations.Create(ctx, b.ID, InvitationInput{WorkspaceID: ws.ID}); !errors.Is(err, authz.ErrNotWorkspaceOwner) {
		t.Fatalf("member create = %v", err)
	}

	inv, err := e.invitations.Create(ctx, a.ID, InvitationInput{WorkspaceID: ws.ID})
	if err != nil {
		t.Fatal(err)
	}
	if inv.InviteType != domain.InviteTypePrivate || inv.Invitees == nil {
		t.Fatalf("defaults = %+v", inv)
	}

	update := InvitationInput{InviteType: domain.InviteTypePrivate, Invitees: []string{"Carol@Example.com"}}
	if _, err := e.invitations.Update(ctx, b.ID, inv.ID, update); !errors.Is(err, authz.ErrNotWorkspaceOwner) {
		t.Fatalf("member update = %v", err)
	}
	updated, err := e.invitations.Update(ctx, a.ID, inv.ID, update)
	if err != nil {
		t.Fatal(err)
	}
	if updated.InviteType != domain.InviteTypePrivate || updated.Invitees[0] != "carol@example.com" {
		t.Fatalf("updated = %+v", updated)
	}

	list, err := e.invitations.ListByWorkspace(ctx, b.ID, ws.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByWorkspace = %v, %v", list, err)
	}

	summary, err := e.invitations.Workspace(ctx, inv.ID)
	if err != nil || summary.ID != ws.ID || summary.Name != ws.Name {
		t.Fatalf("Workspace = %+v, %v", summary, err)
	}

	if err := e.invitations.Delete(ctx, a.ID, inv.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.invitations.Get(ctx, inv.ID); !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
	if _, err := e.invitations.Get(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get unknown = %v", err)
	}
}
