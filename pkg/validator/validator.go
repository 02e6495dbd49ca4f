package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Add keeps the first message recorded for a field.
func (v ValidationErrors) Add(field, message string) {
	if _, exists := v[field]; exists {
		return
	}
	v[field] = message
}

// Error joins the messages so the map can travel as an error value.
func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for field, msg := range v {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

const (
	MaxIDLength          = 50
	MaxNameLength        = 80
	MaxMessageTextLength = 2000
	MaxEditedTextLength  = 100
	MaxAttachmentLength  = 200
	MaxInvitees          = 100
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func ValidateRegister(email, username, displayName, password string) ValidationErrors {
	errs := make(ValidationErrors)

	// Email
	validateEmail("email", email, errs)

	// Username
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) < 3 {
		errs.Add("username", "Username must be at least 3 characters")
	} else if len(username) > 50 {
		errs.Add("username", "Username is too long")
	} else if !usernameRegex.MatchString(username) {
		errs.Add("username", "Username can only contain letters, numbers, _ and -")
	}

	// Display name
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		errs.Add("displayName", "Display name is required")
	} else if utf8.RuneCountInString(displayName) < 2 {
		errs.Add("displayName", "Display name must be at least 2 characters")
	} else if utf8.RuneCountInString(displayName) > 100 {
		errs.Add("displayName", "Display name is too long")
	}

	// Password
	validatePassword(password, errs)

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail("email", email, errs)

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

func ValidateWorkspace(name string) ValidationErrors {
	errs := make(ValidationErrors)
	validateName("name", "Workspace name", &name, true, errs)
	return errs
}

func ValidateCreateChat(workspaceID, name, visibility, chatType string) ValidationErrors {
	errs := make(ValidationErrors)
	ValidateID("workspaceId", "Workspace id", workspaceID, errs)
	validateName("name", "Chat name", &name, true, errs)
	validateEnum("visibility", visibility, errs, "public", "private")
	validateEnum("chatType", chatType, errs, "group", "dm")
	return errs
}

func ValidateUpdateChat(name, visibility *string) ValidationErrors {
	errs := make(ValidationErrors)
	validateName("name", "Chat name", name, false, errs)
	if visibility != nil {
		validateEnum("visibility", *visibility, errs, "public", "private")
	}
	return errs
}

func ValidateCreateDM(workspaceID, userID string) ValidationErrors {
	errs := make(ValidationErrors)
	ValidateID("workspaceId", "Workspace id", workspaceID, errs)
	ValidateID("userId", "User id", userID, errs)
	return errs
}

func ValidateMembers(members []string) ValidationErrors {
	errs := make(ValidationErrors)
	if len(members) == 0 {
		errs.Add("members", "At least one member is required")
		return errs
	}
	for i, id := range members {
		ValidateID(fmt.Sprintf("members[%d]", i), "Member id", id, errs)
	}
	return errs
}

func ValidateRole(role string) ValidationErrors {
	errs := make(ValidationErrors)
	if role == "" {
		errs.Add("role", "Role is required")
		return errs
	}
	validateEnum("role", role, errs, "member", "admin")
	return errs
}

// ValidateRoomIntent covers intents that only carry an id.
func ValidateRoomIntent(field, label, id string) ValidationErrors {
	errs := make(ValidationErrors)
	ValidateID(field, label, id, errs)
	return errs
}

func ValidateSendMessage(chatID string, text, attachment *string) ValidationErrors {
	errs := make(ValidationErrors)
	ValidateID("chatId", "Chat id", chatID, errs)
	validateOptional("text", "Message text", text, MaxMessageTextLength, errs)
	validateOptional("attachment", "Attachment link", attachment, MaxAttachmentLength, errs)
	if text == nil && attachment == nil {
		errs.Add("text", "Either text or attachment must be provided")
	}
	return errs
}

func ValidateEditMessage(messageID string, text, attachment *string) ValidationErrors {
	errs := make(ValidationErrors)
	ValidateID("messageId", "Message id", messageID, errs)
	validateOptional("text", "Message text", text, MaxEditedTextLength, errs)
	validateOptional("attachment", "Attachment link", attachment, MaxAttachmentLength, errs)
	if text == nil && attachment == nil {
		errs.Add("text", "Either text or attachment must be provided")
	}
	return errs
}

func ValidateInvitation(workspaceID, inviteType string, expiresAt *time.Time, invitees []string, now time.Time) ValidationErrors {
	errs := make(ValidationErrors)
	ValidateID("workspaceId", "Workspace id", workspaceID, errs)
	validateInvitationFields(inviteType, expiresAt, invitees, now, errs)
	return errs
}

func ValidateInvitationUpdate(inviteType string, expiresAt *time.Time, invitees []string, now time.Time) ValidationErrors {
	errs := make(ValidationErrors)
	validateInvitationFields(inviteType, expiresAt, invitees, now, errs)
	return errs
}

func validateInvitationFields(inviteType string, expiresAt *time.Time, invitees []string, now time.Time, errs ValidationErrors) {
	validateEnum("inviteType", inviteType, errs, "public", "private")
	if expiresAt != nil && !expiresAt.After(now) {
		errs.Add("expiresAt", "Expiry must be in the future")
	}
	if len(invitees) > MaxInvitees {
		errs.Add("invitees", fmt.Sprintf("At most %d invitees are allowed", MaxInvitees))
	}
	for i, email := range invitees {
		validateEmail(fmt.Sprintf("invitees[%d]", i), email, errs)
	}
}

// ValidateID checks a required identifier: at most MaxIDLength characters
// after trimming and a well-formed UUID.
func ValidateID(field, label, value string, errs ValidationErrors) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		errs.Add(field, label+" is required")
	case utf8.RuneCountInString(value) > MaxIDLength:
		errs.Add(field, fmt.Sprintf("%s can not contain more than %d characters", label, MaxIDLength))
	default:
		if _, err := uuid.Parse(value); err != nil {
			errs.Add(field, label+" is invalid")
		}
	}
}

func validateName(field, label string, value *string, required bool, errs ValidationErrors) {
	if value == nil {
		if required {
			errs.Add(field, label+" is required")
		}
		return
	}
	name := strings.TrimSpace(*value)
	if name == "" {
		errs.Add(field, label+" is required")
	} else if utf8.RuneCountInString(name) > MaxNameLength {
		errs.Add(field, fmt.Sprintf("%s can contain maximum %d characters", label, MaxNameLength))
	}
}

// validateOptional applies to fields that may be omitted but must be
// non-blank and within max when present.
func validateOptional(field, label string, value *string, limit int, errs ValidationErrors) {
	if value == nil {
		return
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		errs.Add(field, label+" is required")
	} else if utf8.RuneCountInString(v) > limit {
		errs.Add(field, fmt.Sprintf("%s can contain maximum %d characters", label, limit))
	}
}

func validateEnum(field, value string, errs ValidationErrors, allowed ...string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	errs.Add(field, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

func validateEmail(field, email string, errs ValidationErrors) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add(field, "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add(field, "Invalid email address")
	}
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
