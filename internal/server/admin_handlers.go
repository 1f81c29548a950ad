package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/db/models"
	"github.com/zignal/zignalapi/internal/pagination"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/services/iam"
	"github.com/zignal/zignalapi/internal/validation"
)

// AssignRoleRequest is the body of POST /api/admin/assign-role.
type AssignRoleRequest struct {
	TargetUserID string `json:"targetUserId"`
	Role         string `json:"role"`
}

// SignalRequest is the body of POST /api/admin/signals.
type SignalRequest struct {
	Pair        string    `json:"pair"`
	Action      string    `json:"action"`
	TargetPrice float64   `json:"targetPrice"`
	StopLoss    float64   `json:"stopLoss"`
	TakeProfits []float64 `json:"takeProfits"`
	Confidence  int       `json:"confidence"`
	Status      string    `json:"status"`
}

// adminListUsers pages through profiles. ?filter= takes a go-bexpr expression
// over id, email, name, role, isAdmin, disabled and metadata.
func (h *handlers) adminListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pagination.FromQuery(q)

	views, total, err := h.IAMService.ListProfiles(r.Context(), q.Get("filter"), page)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidFilter) {
			respondError(w, r, BadRequest("Validation failed", map[string]string{"filter": err.Error()}))
			return
		}
		respondError(w, r, err)
		return
	}
	respondPage(w, userResponses(views), total, page)
}

func (h *handlers) adminListAdmins(w http.ResponseWriter, r *http.Request) {
	views, err := h.IAMService.ListAdmins(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, userResponses(views))
}

func (h *handlers) adminAssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := h.decodeBody(r, validation.SchemaAssignRole, &req); err != nil {
		respondError(w, r, err)
		return
	}

	profile, err := h.IAMService.SetRole(r.Context(), req.TargetUserID, req.Role)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, r, NotFound("User not found"))
		return
	case errors.Is(err, iam.ErrInvalidRole):
		respondError(w, r, BadRequest("Validation failed", map[string]string{"role": err.Error()}))
		return
	case err != nil:
		respondError(w, r, err)
		return
	}

	view := h.IAMService.AdminView(iam.IdentityOf(profile))
	respondMessage(w, userResponse(profile, view), "Role updated")
}

func (h *handlers) adminListSignals(w http.ResponseWriter, r *http.Request) {
	h.listSignals(w, r)
}

func (h *handlers) adminCreateSignal(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req SignalRequest
	if err := h.decodeBody(r, validation.SchemaSignalCreate, &req); err != nil {
		respondError(w, r, err)
		return
	}

	signal := &models.Signal{
		Pair:        req.Pair,
		Action:      req.Action,
		TargetPrice: req.TargetPrice,
		StopLoss:    req.StopLoss,
		TakeProfits: models.FloatList(req.TakeProfits),
		Confidence:  req.Confidence,
		Status:      req.Status,
	}
	if p.ProfileID != "" {
		author := p.ProfileID
		signal.ProfileID = &author
	}

	if err := h.Repos.Signals.Create(r.Context(), signal); err != nil {
		respondError(w, r, err)
		return
	}
	respondCreated(w, signal, "Signal published")
}

// DependencyStatus reports one backing service in the admin health view.
type DependencyStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// adminListPackages lists subscription packages newest first with their
// active subscriber counts.
func (h *handlers) adminListPackages(w http.ResponseWriter, r *http.Request) {
	if h.Repos.Packages == nil {
		respondError(w, r, NotImplemented("Package management"))
		return
	}
	packages, err := h.Repos.Packages.ListWithSubscriberCounts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, packages)
}

// adminHealth reports database and market API reachability plus the active
// session sources.
func (h *handlers) adminHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	deps := []DependencyStatus{h.checkDatabase(ctx)}

	market := DependencyStatus{Name: "market", Healthy: true}
	if h.Market == nil {
		market.Healthy, market.Detail = false, "not configured"
	} else if _, err := h.Market.Prices(ctx); err != nil {
		market.Healthy, market.Detail = false, "unreachable"
	}
	deps = append(deps, market)

	healthy := true
	for _, d := range deps {
		healthy = healthy && d.Healthy
	}

	schemas := 0
	if h.Validator != nil {
		schemas = h.Validator.GetCacheSize()
	}

	respondOK(w, map[string]any{
		"healthy":         healthy,
		"version":         h.Version,
		"dependencies":    deps,
		"sessionSources":  h.IAMService.SourceNames(),
		"compiledSchemas": schemas,
		"checkedAt":       time.Now().UTC(),
	})
}

func (h *handlers) checkDatabase(ctx context.Context) DependencyStatus {
	status := DependencyStatus{Name: "database", Healthy: true}
	if h.DB == nil {
		status.Healthy, status.Detail = false, "not configured"
	} else if err := h.DB.PingContext(ctx); err != nil {
		status.Healthy, status.Detail = false, "unreachable"
	}
	return status
}
