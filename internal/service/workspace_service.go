package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/authz"
	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/repository"
)

type WorkspaceService struct {
	workspaceRepo  repository.WorkspaceRepository
	chatRepo       repository.ChatRepository
	invitationRepo repository.InvitationRepository
	userRepo       repository.UserRepository
	notifier       Notifier
	now            func() time.Time
}

func NewWorkspaceService(
	workspaceRepo repository.WorkspaceRepository,
	chatRepo repository.ChatRepository,
	invitationRepo repository.InvitationRepository,
	userRepo repository.UserRepository,
) *WorkspaceService {
	return &WorkspaceService{
		workspaceRepo:  workspaceRepo,
		chatRepo:       chatRepo,
		invitationRepo: invitationRepo,
		userRepo:       userRepo,
		now:            time.Now,
	}
}

// SetNotifier sets the real-time notifier used when members leave.
func (s *WorkspaceService) SetNotifier(n Notifier) {
	s.notifier = n
}

type CreateWorkspaceInput struct {
	Name string `json:"name"`
}

type UpdateWorkspaceInput struct {
	Name string `json:"name"`
}

type ChangeRoleInput struct {
	Role domain.WorkspaceRole `json:"role"`
}

// Create makes a workspace owned by userID.
func (s *WorkspaceService) Create(ctx context.Context, userID uuid.UUID, input CreateWorkspaceInput) (*domain.Workspace, error) {
	now := s.clock()
	ws := &domain.Workspace{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(input.Name),
		Members:   []domain.WorkspaceMember{{UserID: userID, Role: domain.WorkspaceRoleOwner, JoinedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.workspaceRepo.Create(ctx, ws); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return ws, nil
}

func (s *WorkspaceService) Get(ctx context.Context, userID, workspaceID uuid.UUID) (*domain.Workspace, error) {
	ws, err := s.get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanViewWorkspace(ws, userID); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *WorkspaceService) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Workspace, error) {
	workspaces, err := s.workspaceRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if workspaces == nil {
		workspaces = []domain.Workspace{}
	}
	return workspaces, nil
}

// Rename is open to every workspace member.
func (s *WorkspaceService) Rename(ctx context.Context, userID, workspaceID uuid.UUID, input UpdateWorkspaceInput) (*domain.Workspace, error) {
	ws, err := s.Get(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}

	ws.Name = strings.TrimSpace(input.Name)
	ws.UpdatedAt = s.clock()
	if err := s.workspaceRepo.Update(ctx, ws); err != nil {
		return nil, fmt.Errorf("updating workspace: %w", err)
	}
	return ws, nil
}

// Join adds the caller to the invitation's workspace. Joining a workspace the
// caller already belongs to succeeds without changes.
func (s *WorkspaceService) Join(ctx context.Context, userID, invitationID uuid.UUID) (*domain.Workspace, error) {
	inv, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvitationNotFound
	}

	ws, err := s.get(ctx, inv.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if authz.IsWorkspaceMember(ws, userID) {
		return ws, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if err := authz.CanJoinWithInvitation(inv, user.Email, s.now()); err != nil {
		return nil, err
	}

	member := domain.WorkspaceMember{UserID: userID, Role: domain.WorkspaceRoleMember, JoinedAt: s.clock()}
	if err := s.workspaceRepo.AddMember(ctx, ws.ID, member); err != nil {
		return nil, fmt.Errorf("adding workspace member: %w", err)
	}
	ws.Members = append(ws.Members, member)
	return ws, nil
}

// Leave removes the caller from the workspace and from its group chats.
func (s *WorkspaceService) Leave(ctx context.Context, userID, workspaceID uuid.UUID) error {
	ws, err := s.get(ctx, workspaceID)
	if err != nil {
		return err
	}
	if err := authz.CanLeaveWorkspace(ws, userID); err != nil {
		return err
	}
	return s.dropMember(ctx, ws.ID, userID)
}

// RemoveMember lets owners and admins remove anyone but the owner.
func (s *WorkspaceService) RemoveMember(ctx context.Context, userID, workspaceID, targetID uuid.UUID) (*domain.Workspace, error) {
	ws, err := s.get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanManageWorkspaceMembers(ws, userID, targetID); err != nil {
		return nil, err
	}
	if !authz.IsWorkspaceMember(ws, targetID) {
		return nil, ErrMemberNotFound
	}

	if err := s.dropMember(ctx, ws.ID, targetID); err != nil {
		return nil, err
	}
	for i, m := range ws.Members {
		if m.UserID == targetID {
			ws.Members = append(ws.Members[:i], ws.Members[i+1:]...)
			break
		}
	}
	return ws, nil
}

// ChangeRole is reserved to the owner and cannot touch the owner's own role.
func (s *WorkspaceService) ChangeRole(ctx context.Context, userID, workspaceID, targetID uuid.UUID, input ChangeRoleInput) (*domain.Workspace, error) {
	if input.Role != domain.WorkspaceRoleMember && input.Role != domain.WorkspaceRoleAdmin {
		return nil, ErrInvalidRole
	}

	ws, err := s.get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanChangeMemberRole(ws, userID, targetID); err != nil {
		return nil, err
	}
	member, ok := ws.Member(targetID)
	if !ok {
		return nil, ErrMemberNotFound
	}

	if err := s.workspaceRepo.UpdateMemberRole(ctx, ws.ID, targetID, input.Role); err != nil {
		return nil, fmt.Errorf("updating member role: %w", err)
	}
	member.Role = input.Role
	return ws, nil
}

func (s *WorkspaceService) dropMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	if err := s.workspaceRepo.RemoveMember(ctx, workspaceID, userID); err != nil {
		return fmt.Errorf("removing workspace member: %w", err)
	}

	left, err := s.chatRepo.LeaveGroups(ctx, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("removing member from chats: %w", err)
	}
	if s.notifier == nil {
		return nil
	}

	// Public chats are readable without membership, so the user may be
	// subscribed to rooms LeaveGroups never touched. DMs stay open.
	visible, err := s.chatRepo.ListVisible(ctx, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("listing chats to revoke: %w", err)
	}
	revoked := make(map[uuid.UUID]struct{}, len(left)+len(visible))
	for _, chatID := range left {
		revoked[chatID] = struct{}{}
	}
	for _, chat := range visible {
		if !chat.IsDM() {
			revoked[chat.ID] = struct{}{}
		}
	}
	for chatID := range revoked {
		s.notifier.NotifyAccessRevoked(chatID, []uuid.UUID{userID})
	}
	return nil
}

func (s *WorkspaceService) get(ctx context.Context, workspaceID uuid.UUID) (*domain.Workspace, error) {
	ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, ErrWorkspaceNotFound
	}
	return ws, nil
}

func (s *WorkspaceService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
