package server

import (
	"time"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/services/iam"
)

// UserResponse is the client view of a profile.
type UserResponse struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	AvatarURL   *string        `json:"avatarUrl,omitempty"`
	Role        string         `json:"role,omitempty"`
	Admin       auth.AdminView `json:"admin"`
	Disabled    bool           `json:"disabled"`
	CreatedAt   *time.Time     `json:"createdAt,omitempty"`
	LastLoginAt *time.Time     `json:"lastLoginAt,omitempty"`
}

func userResponse(p *models.Profile, view auth.AdminView) UserResponse {
	created := p.CreatedAt
	return UserResponse{
		ID:          p.ID,
		Email:       p.Email,
		Name:        p.Name,
		AvatarURL:   p.AvatarURL,
		Role:        auth.DecodeMetadata(p.Metadata).Role,
		Admin:       view,
		Disabled:    p.Disabled(),
		CreatedAt:   &created,
		LastLoginAt: p.LastLoginAt,
	}
}

func userResponses(views []iam.ProfileView) []UserResponse {
	out := make([]UserResponse, 0, len(views))
	for _, v := range views {
		out = append(out, userResponse(v.Profile, v.Admin))
	}
	return out
}

// SessionResponse is the client view of a database session.
type SessionResponse struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	UserAgent  *string   `json:"userAgent,omitempty"`
	IPAddress  *string   `json:"ipAddress,omitempty"`
	Revoked    bool      `json:"revoked"`
	Current    bool      `json:"current"`
}

func sessionResponses(sessions []models.Session, currentID string) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:         s.ID,
			CreatedAt:  s.CreatedAt,
			ExpiresAt:  s.ExpiresAt,
			LastUsedAt: s.LastUsedAt,
			UserAgent:  s.UserAgent,
			IPAddress:  s.IPAddress,
			Revoked:    s.Revoked,
			Current:    s.ID == currentID,
		})
	}
	return out
}

// WhoAmIResponse describes the resolved session of the caller.
type WhoAmIResponse struct {
	User struct {
		ID        string `json:"id"`
		ProfileID string `json:"profileId,omitempty"`
		Email     string `json:"email"`
		Name      string `json:"name"`
	} `json:"user"`
	Source    string         `json:"source"`
	SessionID string         `json:"sessionId,omitempty"`
	Admin     auth.AdminView `json:"admin"`
}

func whoAmI(p auth.AuthenticatedPrincipal) WhoAmIResponse {
	var resp WhoAmIResponse
	resp.User.ID = p.Subject
	resp.User.ProfileID = p.ProfileID
	resp.User.Email = p.Email
	resp.User.Name = p.Name
	resp.Source = p.Source
	resp.SessionID = p.SessionID
	resp.Admin = p.Admin
	return resp
}
