package iam

import (
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"

	"github.com/zignal/zignalapi/internal/auth"
)

// AuthorizeCapabilities checks if ANY capability in view grants action on obj.
//
// This is a READ-ONLY check. Admins holding every capability are checked as
// the "*" subject; restricted admins are checked once per granted capability.
// Non-admins are denied without consulting the enforcer.
func AuthorizeCapabilities(enforcer casbin.IEnforcer, view auth.AdminView, obj, act string) (bool, error) {
	if enforcer == nil {
		return false, fmt.Errorf("casbin enforcer not initialized")
	}
	if !view.IsAdmin {
		return false, nil
	}

	subjects := view.Permissions
	if view.AllPermissions {
		subjects = []string{auth.AllSubject}
	}

	for _, sub := range subjects {
		allowed, err := enforcer.Enforce(sub, obj, act)
		if err != nil {
			return false, fmt.Errorf("casbin enforce error for %s: %w", sub, err)
		}
		if allowed {
			return true, nil
		}
	}

	slog.Debug("authorization denied", "permissions", view.Permissions, "obj", obj, "act", act)
	return false, nil
}
