package iam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zignal/zignalapi/internal/auth"
)

func TestAuthorizeCapabilities(t *testing.T) {
	enforcer, err := auth.InitEnforcer()
	require.NoError(t, err)

	tests := []struct {
		name    string
		view    auth.AdminView
		obj     string
		act     string
		allowed bool
	}{
		{"non-admin denied", auth.AdminView{Permissions: []string{"users"}}, auth.ResourceAdminUsers, auth.ActionRead, false},
		{"all permissions", auth.AdminView{IsAdmin: true, AllPermissions: true}, auth.ResourceAdminSystem, auth.ActionRead, true},
		{"granted capability", auth.AdminView{IsAdmin: true, Permissions: []string{"signals", "finances"}}, auth.ResourcePaymentsAnalytics, auth.ActionRead, true},
		{"finances reads payments", auth.AdminView{IsAdmin: true, Permissions: []string{"finances"}}, auth.ResourcePayments, auth.ActionRead, true},
		{"finances cannot write payments", auth.AdminView{IsAdmin: true, Permissions: []string{"finances"}}, auth.ResourcePayments, auth.ActionWrite, false},
		{"empty grant", auth.AdminView{IsAdmin: true, Permissions: []string{}}, auth.ResourceAdminSignals, auth.ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := AuthorizeCapabilities(enforcer, tt.view, tt.obj, tt.act)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, ok)
		})
	}

	_, err = AuthorizeCapabilities(nil, auth.AdminView{IsAdmin: true}, auth.ResourcePayments, auth.ActionRead)
	assert.Error(t, err)
}
