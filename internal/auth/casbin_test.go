package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitEnforcer_Policy(t *testing.T) {
	enforcer, err := InitEnforcer()
	require.NoError(t, err)

	tests := []struct {
		sub, obj, act string
		allowed       bool
	}{
		{CapabilityUsers, ResourceAdminUsers, ActionRead, true},
		{CapabilityUsers, ResourceAdminUsers, ActionWrite, true},
		{CapabilityUsers, ResourceOtherSessions, ActionWrite, true},
		{CapabilityUsers, ResourcePayments, ActionRead, false},
		{CapabilityPayments, ResourcePayments, ActionWrite, true},
		{CapabilityPayments, ResourcePaymentLinks, ActionWrite, true},
		{CapabilityFinances, ResourcePayments, ActionRead, true},
		{CapabilityFinances, ResourcePayments, ActionWrite, false},
		{CapabilityFinances, ResourcePaymentsAnalytics, ActionRead, true},
		{CapabilitySignals, ResourceAdminSignals, ActionWrite, true},
		{CapabilitySignals, ResourceAdminSystem, ActionRead, false},
		{CapabilitySystem, ResourceAdminSystem, ActionRead, true},
		{CapabilitySystem, ResourceAdminSystem, ActionWrite, false},
		{AllSubject, ResourceAdminSystem, ActionRead, true},
		{AllSubject, ResourcePaymentLinks, ActionWrite, true},
		{AllSubject, "unknown.resource", ActionRead, false},
		{"member", ResourceAdminUsers, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.sub+"/"+tt.obj+"/"+tt.act, func(t *testing.T) {
			ok, err := enforcer.Enforce(tt.sub, tt.obj, tt.act)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, ok)
		})
	}
}
