package auth

import (
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Admin capability names. A capability gates one area of the admin API.
const (
	CapabilityUsers    = "users"
	CapabilitySignals  = "signals"
	CapabilityFinances = "finances"
	CapabilityPayments = "payments"
	CapabilitySystem   = "system"
)

// Capabilities lists every capability in display order.
var Capabilities = []string{
	CapabilityUsers,
	CapabilitySignals,
	CapabilityFinances,
	CapabilityPayments,
	CapabilitySystem,
}

// Metadata keys read from identity metadata.
const (
	MetadataRole             = "role"
	MetadataIsAdmin          = "isAdmin"
	MetadataAdminPermissions = "adminPermissions"
)

// Identity is the external user record the gate evaluates.
type Identity struct {
	ID       string
	Email    string
	Name     string
	Metadata map[string]any
}

// Metadata is the typed view of the role-related metadata fields.
type Metadata struct {
	Role             string   `mapstructure:"role"`
	IsAdmin          bool     `mapstructure:"isAdmin"`
	AdminPermissions []string `mapstructure:"adminPermissions"`
}

// DecodeMetadata extracts the role fields from raw metadata. Fields with the
// wrong type are left at their zero value; the rest still decode.
func DecodeMetadata(raw map[string]any) Metadata {
	var md Metadata
	if len(raw) == 0 {
		return md
	}
	_ = mapstructure.Decode(raw, &md)
	return md
}

// AdminPolicy holds the deployment-level admin rules.
type AdminPolicy struct {
	// AllowedEmails always grants admin, compared case-insensitively.
	AllowedEmails []string
	// EmailPattern grants admin to emails containing it. Empty disables the rule.
	EmailPattern string
}

// AdminView is derived per request and never persisted.
type AdminView struct {
	IsAdmin        bool     `json:"isAdmin"`
	AllPermissions bool     `json:"allPermissions"`
	Permissions    []string `json:"permissions"`
}

// Has reports whether the view grants capability.
func (v AdminView) Has(capability string) bool {
	if !v.IsAdmin {
		return false
	}
	return v.AllPermissions || slices.Contains(v.Permissions, capability)
}

// EvaluateAdmin is the single admin decision. An identity is admin when its
// metadata role is "admin", its metadata isAdmin is true, its email is in the
// allow-list, or its email contains the configured pattern. Admins get the
// capabilities listed in adminPermissions when that key is present, otherwise
// all of them.
func EvaluateAdmin(id Identity, policy AdminPolicy) AdminView {
	md := DecodeMetadata(id.Metadata)
	email := strings.ToLower(strings.TrimSpace(id.Email))

	admin := md.Role == "admin" || md.IsAdmin
	if !admin && email != "" {
		for _, allowed := range policy.AllowedEmails {
			if strings.EqualFold(strings.TrimSpace(allowed), email) {
				admin = true
				break
			}
		}
	}
	if !admin && email != "" && policy.EmailPattern != "" {
		admin = strings.Contains(email, strings.ToLower(policy.EmailPattern))
	}

	if !admin {
		return AdminView{Permissions: []string{}}
	}

	if _, restricted := id.Metadata[MetadataAdminPermissions]; restricted {
		granted := []string{}
		for _, p := range md.AdminPermissions {
			if slices.Contains(Capabilities, p) && !slices.Contains(granted, p) {
				granted = append(granted, p)
			}
		}
		return AdminView{IsAdmin: true, Permissions: granted}
	}

	return AdminView{IsAdmin: true, AllPermissions: true, Permissions: slices.Clone(Capabilities)}
}
