package usersync

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/services/iam"
)

// Event types handled by Syncer.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Event is one user webhook delivery.
type Event struct {
	Type string   `json:"type"`
	Data UserData `json:"data"`
}

// UserData is the provider's user record.
type UserData struct {
	ID             string         `json:"id"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Username       string         `json:"username"`
	ImageURL       string         `json:"image_url"`
	PublicMetadata map[string]any `json:"public_metadata"`
}

type EmailAddress struct {
	EmailAddress string `json:"email_address"`
}

// Email is the user's first address.
func (u UserData) Email() string {
	if len(u.EmailAddresses) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(u.EmailAddresses[0].EmailAddress))
}

// DisplayName joins first and last name, then falls back to the username
// and the email local part.
func (u UserData) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	local, _, _ := strings.Cut(u.Email(), "@")
	return local
}

// Metadata copies the public metadata and fills in role from isAdmin when
// the provider did not set one.
func (u UserData) Metadata() map[string]any {
	md := make(map[string]any, len(u.PublicMetadata)+1)
	for k, v := range u.PublicMetadata {
		md[k] = v
	}
	if _, ok := md[auth.MetadataRole].(string); !ok {
		role := iam.RoleMember
		if isAdmin, _ := md[auth.MetadataIsAdmin].(bool); isAdmin {
			role = iam.RoleAdmin
		}
		md[auth.MetadataRole] = role
	}
	return md
}

// Result reports what a delivery changed.
type Result struct {
	Handled   bool   `json:"handled"`
	ProfileID string `json:"profileId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Syncer mirrors user events into profiles through the IAM service.
type Syncer struct {
	iam iam.Service
}

func NewSyncer(iamService iam.Service) *Syncer {
	return &Syncer{iam: iamService}
}

// Apply handles one event. Unknown event types and deletions of users that
// never had a profile are acknowledged without changes.
func (s *Syncer) Apply(ctx context.Context, ev Event) (Result, error) {
	if ev.Data.ID == "" {
		return Result{Reason: "missing user id"}, nil
	}

	switch ev.Type {
	case EventUserCreated, EventUserUpdated:
		profile, err := s.iam.SyncProviderUser(ctx, iam.ProviderUser{
			Identity: auth.Identity{
				ID:       ev.Data.ID,
				Email:    ev.Data.Email(),
				Name:     ev.Data.DisplayName(),
				Metadata: ev.Data.Metadata(),
			},
			AvatarURL: ev.Data.ImageURL,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Handled: true, ProfileID: profile.ID}, nil

	case EventUserDeleted:
		profile, err := s.iam.DisableProviderUser(ctx, ev.Data.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return Result{Reason: "no profile for user"}, nil
		}
		if err != nil {
			return Result{}, err
		}
		return Result{Handled: true, ProfileID: profile.ID}, nil

	default:
		slog.DebugContext(ctx, "ignoring user webhook", "type", ev.Type)
		return Result{Reason: "unhandled event type"}, nil
	}
}
