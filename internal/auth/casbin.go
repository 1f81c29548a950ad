package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
)

// Resources guarded by admin capabilities.
const (
	ResourceAdminUsers        = "admin.users"
	ResourceOtherSessions     = "auth.sessions.others"
	ResourceAdminSignals      = "admin.signals"
	ResourcePayments          = "payments"
	ResourcePaymentLinks      = "payments.links"
	ResourcePaymentsAnalytics = "analytics.payments"
	ResourceAdminSystem       = "admin.system"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// AllSubject is the request subject used for admins holding every capability.
const AllSubject = "*"

//go:embed model.conf
var casbinModelContent string

//go:embed policy.csv
var casbinPolicyContent string

// InitEnforcer builds the capability enforcer from the embedded model and
// policy. The policy is static; nothing writes to the enforcer after load.
func InitEnforcer() (casbin.IEnforcer, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(casbinPolicyContent))
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	enforcer.EnableAutoSave(false)

	return enforcer, nil
}
