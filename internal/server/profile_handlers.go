package server

import (
	"net/http"

	"github.com/zignal/zignalapi/internal/services/iam"
	"github.com/zignal/zignalapi/internal/validation"
)

// ProfilePatchRequest holds the self-service profile fields.
type ProfilePatchRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := currentProfileID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	profile, err := h.IAMService.GetProfile(r.Context(), profileID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, _ := currentPrincipal(r)
	respondOK(w, userResponse(profile, p.Admin))
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := currentProfileID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req ProfilePatchRequest
	if err := h.decodeBody(r, validation.SchemaProfilePatch, &req); err != nil {
		respondError(w, r, err)
		return
	}

	profile, err := h.IAMService.UpdateProfile(r.Context(), profileID, iam.ProfilePatch{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, _ := currentPrincipal(r)
	respondMessage(w, userResponse(profile, p.Admin), "Profile updated")
}
