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

type InvitationService struct {
	invitationRepo repository.InvitationRepository
	workspaceRepo  repository.WorkspaceRepository
	now            func() time.Time
}

func NewInvitationService(invitationRepo repository.InvitationRepository, workspaceRepo repository.WorkspaceRepository) *InvitationService {
	return &InvitationService{
		invitationRepo: invitationRepo,
		workspaceRepo:  workspaceRepo,
		now:            time.Now,
	}
}

type InvitationInput struct {
	WorkspaceID uuid.UUID         `json:"workspaceId"`
	InviteType  domain.InviteType `json:"inviteType"`
	ExpiresAt   *time.Time        `json:"expiresAt"`
	Invitees    []string          `json:"invitees"`
}

// WorkspaceSummary is what a prospective member sees before joining.
type WorkspaceSummary struct {
	ID   uuid.UUID `json:"_id"`
	Name string    `json:"name"`
}

// Create is reserved to the workspace owner.
func (s *InvitationService) Create(ctx context.Context, userID uuid.UUID, input InvitationInput) (*domain.Invitation, error) {
	ws, err := s.getWorkspace(ctx, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanManageInvitations(ws, userID); err != nil {
		return nil, err
	}

	now := s.clock()
	inv := &domain.Invitation{
		ID:          uuid.New(),
		WorkspaceID: ws.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyInvitation(inv, input)

	if err := s.invitationRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("creating invitation: %w", err)
	}
	return inv, nil
}

// Get is open to any authenticated user so invitees can inspect the link
// before joining.
func (s *InvitationService) Get(ctx context.Context, invitationID uuid.UUID) (*domain.Invitation, error) {
	return s.get(ctx, invitationID)
}

// Workspace returns the name of the workspace an invitation points to.
func (s *InvitationService) Workspace(ctx context.Context, invitationID uuid.UUID) (*WorkspaceSummary, error) {
	inv, err := s.get(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	ws, err := s.getWorkspace(ctx, inv.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return &WorkspaceSummary{ID: ws.ID, Name: ws.Name}, nil
}

func (s *InvitationService) ListByWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) ([]domain.Invitation, error) {
	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanViewWorkspace(ws, userID); err != nil {
		return nil, err
	}

	invitations, err := s.invitationRepo.ListByWorkspace(ctx, ws.ID)
	if err != nil {
		return nil, err
	}
	if invitations == nil {
		invitations = []domain.Invitation{}
	}
	return invitations, nil
}

// Update replaces type, expiry and invitee list. The workspace is fixed.
func (s *InvitationService) Update(ctx context.Context, userID, invitationID uuid.UUID, input InvitationInput) (*domain.Invitation, error) {
	inv, err := s.authorize(ctx, userID, invitationID)
	if err != nil {
		return nil, err
	}

	applyInvitation(inv, input)
	inv.UpdatedAt = s.clock()
	if err := s.invitationRepo.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("updating invitation: %w", err)
	}
	return inv, nil
}

func (s *InvitationService) Delete(ctx context.Context, userID, invitationID uuid.UUID) error {
	inv, err := s.authorize(ctx, userID, invitationID)
	if err != nil {
		return err
	}
	return s.invitationRepo.Delete(ctx, inv.ID)
}

func (s *InvitationService) authorize(ctx context.Context, userID, invitationID uuid.UUID) (*domain.Invitation, error) {
	inv, err := s.get(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	ws, err := s.getWorkspace(ctx, inv.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanManageInvitations(ws, userID); err != nil {
		return nil, err
	}
	return inv, nil
}

func applyInvitation(inv *domain.Invitation, input InvitationInput) {
	inv.InviteType = input.InviteType
	if inv.InviteType == "" {
		inv.InviteType = domain.InviteTypePrivate
	}
	inv.ExpiresAt = nil
	if input.ExpiresAt != nil {
		at := input.ExpiresAt.UTC().Truncate(time.Microsecond)
		inv.ExpiresAt = &at
	}
	inv.Invitees = make([]string, 0, len(input.Invitees))
	for _, email := range input.Invitees {
		inv.Invitees = append(inv.Invitees, strings.ToLower(strings.TrimSpace(email)))
	}
}

func (s *InvitationService) get(ctx context.Context, invitationID uuid.UUID) (*domain.Invitation, error) {
	inv, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvitationNotFound
	}
	return inv, nil
}

func (s *InvitationService) getWorkspace(ctx context.Context, workspaceID uuid.UUID) (*domain.Workspace, error) {
	ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, ErrWorkspaceNotFound
	}
	return ws, nil
}

func (s *InvitationService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
