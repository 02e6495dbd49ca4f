package service

import (
	"errors"
	"fmt"

	"github.com/vedran77/teamchat/internal/domain"
)

var (
	ErrUserNotFound       = fmt.Errorf("%w: user not found", domain.ErrNotFound)
	ErrWorkspaceNotFound  = fmt.Errorf("%w: workspace not found", domain.ErrNotFound)
	ErrChatNotFound       = fmt.Errorf("%w: chat not found", domain.ErrNotFound)
	ErrMessageNotFound    = fmt.Errorf("%w: message not found", domain.ErrNotFound)
	ErrInvitationNotFound = fmt.Errorf("%w: invitation not found", domain.ErrNotFound)
	ErrMemberNotFound     = fmt.Errorf("%w: member not found", domain.ErrNotFound)

	ErrEmailTaken    = fmt.Errorf("%w: email already taken", domain.ErrConflict)
	ErrUsernameTaken = fmt.Errorf("%w: username already taken", domain.ErrConflict)

	ErrDMWithSelf     = fmt.Errorf("%w: cannot start a direct message with yourself", domain.ErrValidation)
	ErrEmptyMessage   = fmt.Errorf("%w: either text or attachment must be provided", domain.ErrValidation)
	ErrInvalidRole    = fmt.Errorf("%w: role must be member or admin", domain.ErrValidation)
	ErrDMViaGroupPath = fmt.Errorf("%w: direct messages are created through the dm endpoint", domain.ErrForbidden)

	ErrInvalidCreds = errors.New("invalid email or password")
)
