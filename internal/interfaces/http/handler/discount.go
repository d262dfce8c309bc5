package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	pricingapp "github.com/intlshop/backend/internal/application/pricing"
	"github.com/intlshop/backend/internal/domain/pricing"
)

// DiscountAdminService manages discount policies and codes
type DiscountAdminService interface {
	UpsertPolicy(ctx context.Context, cmd pricingapp.UpsertPolicyCommand) (*pricingapp.PolicyResult, error)
	CreateCode(ctx context.Context, cmd pricingapp.CreateCodeCommand) (*pricing.Code, error)
	RecomputeFxAmountsAll(ctx context.Context, batch int) (pricingapp.RecomputeReport, error)
	ListPolicies(ctx context.Context, q pricingapp.PolicyQuery) ([]*pricing.Policy, int64, error)
	PatchPolicy(ctx context.Context, id int64, cmd pricingapp.PatchPolicyCommand) (*pricingapp.PolicyResult, error)
	DeletePolicy(ctx context.Context, id int64) error
	ListCodes(ctx context.Context, q pricingapp.CodeQuery) ([]*pricing.Code, int64, error)
	PatchCode(ctx context.Context, id int64, cmd pricingapp.PatchCodeCommand) (*pricing.Code, error)
	DeleteCode(ctx context.Context, id int64) error
	CodeProducts(ctx context.Context, id int64) (*pricingapp.CodeProducts, error)
	ReplaceCodeProducts(ctx context.Context, id int64, mode pricing.ScopeMode, productIDs []int64) (*pricingapp.CodeProducts, error)
}

// FxSyncer pulls the latest FX rates
type FxSyncer interface {
	SyncLatest(ctx context.Context) (int, error)
}

// PolicyAmountRequest is the explicit amount configuration for one currency
type PolicyAmountRequest struct {
	Currency               string `json:"currency" binding:"required,currency"`
	AmountOffMinor         *int64 `json:"amount_off_minor" binding:"omitempty,gt=0"`
	MinOrderAmountMinor    *int64 `json:"min_order_amount_minor" binding:"omitempty,gte=0"`
	MaxDiscountAmountMinor *int64 `json:"max_discount_amount_minor" binding:"omitempty,gt=0"`
}

// UpsertPolicyRequest creates a policy, or replaces it when id is set. Amount
// entries for other enabled currencies are derived from the base currency entry.
type UpsertPolicyRequest struct {
	ID           int64                 `json:"id" binding:"omitempty,gt=0"`
	Name         string                `json:"name" binding:"required,max=128"`
	ApplyScope   string                `json:"apply_scope" binding:"required,oneof=ORDER ITEM"`
	StrategyType string                `json:"strategy_type" binding:"required,oneof=PERCENT AMOUNT"`
	PercentOff   *decimal.Decimal      `json:"percent_off"`
	Amounts      []PolicyAmountRequest `json:"amounts" binding:"omitempty,max=64,dive"`
}

func toPolicyAmounts(reqs []PolicyAmountRequest) []pricing.PolicyAmount {
	amounts := make([]pricing.PolicyAmount, 0, len(reqs))
	for _, a := range reqs {
		amounts = append(amounts, pricing.PolicyAmount{
			Currency:               a.Currency,
			AmountOffMinor:         a.AmountOffMinor,
			MinOrderAmountMinor:    a.MinOrderAmountMinor,
			MaxDiscountAmountMinor: a.MaxDiscountAmountMinor,
			Source:                 pricing.AmountSourceManual,
		})
	}
	return amounts
}

func (r UpsertPolicyRequest) toCommand() pricingapp.UpsertPolicyCommand {
	return pricingapp.UpsertPolicyCommand{
		ID:           r.ID,
		Name:         r.Name,
		ApplyScope:   pricing.ApplyScope(r.ApplyScope),
		StrategyType: pricing.StrategyType(r.StrategyType),
		PercentOff:   r.PercentOff,
		Amounts:      toPolicyAmounts(r.Amounts),
	}
}

// CreateCodeRequest creates a discount code bound to a policy
type CreateCodeRequest struct {
	Code       string     `json:"code" binding:"required,max=64"`
	PolicyID   int64      `json:"policy_id" binding:"required,gt=0"`
	Name       string     `json:"name" binding:"omitempty,max=128"`
	ScopeMode  string     `json:"scope_mode" binding:"omitempty,oneof=ALL INCLUDE EXCLUDE"`
	ProductIDs []int64    `json:"product_ids" binding:"omitempty,max=1000,dive,gt=0"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// PolicyAmountResponse is one currency entry of a policy
type PolicyAmountResponse struct {
	Currency               string     `json:"currency"`
	AmountOffMinor         *int64     `json:"amount_off_minor,omitempty"`
	MinOrderAmountMinor    *int64     `json:"min_order_amount_minor,omitempty"`
	MaxDiscountAmountMinor *int64     `json:"max_discount_amount_minor,omitempty"`
	Source                 string     `json:"source"`
	DerivedFrom            string     `json:"derived_from,omitempty"`
	FxRate                 string     `json:"fx_rate,omitempty"`
	FxAsOf                 *time.Time `json:"fx_as_of,omitempty"`
	FxProvider             string     `json:"fx_provider,omitempty"`
}

// PolicyResponse is a saved policy plus the enabled currencies left without an
// amount entry
type PolicyResponse struct {
	ID                int64                  `json:"id"`
	Name              string                 `json:"name"`
	ApplyScope        string                 `json:"apply_scope"`
	StrategyType      string                 `json:"strategy_type"`
	PercentOff        string                 `json:"percent_off,omitempty"`
	Amounts           []PolicyAmountResponse `json:"amounts"`
	SkippedCurrencies []string               `json:"skipped_currencies,omitempty"`
}

// CodeResponse is a discount code
type CodeResponse struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	PolicyID  int64      `json:"policy_id"`
	Name      string     `json:"name,omitempty"`
	ScopeMode string     `json:"scope_mode"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// FxSyncResponse reports an FX sync and the recompute that followed it
type FxSyncResponse struct {
	RatesSynced     int `json:"rates_synced"`
	PoliciesScanned int `json:"policies_scanned"`
	PoliciesUpdated int `json:"policies_updated"`
	PoliciesSkipped int `json:"policies_skipped"`
}

func toPolicyResponse(res *pricingapp.PolicyResult) PolicyResponse {
	p := res.Policy
	amounts := make([]PolicyAmountResponse, 0, len(p.Amounts))
	for _, a := range p.Amounts {
		ar := PolicyAmountResponse{
			Currency:               a.Currency,
			AmountOffMinor:         a.AmountOffMinor,
			MinOrderAmountMinor:    a.MinOrderAmountMinor,
			MaxDiscountAmountMinor: a.MaxDiscountAmountMinor,
			Source:                 string(a.Source),
			DerivedFrom:            a.DerivedFrom,
			FxAsOf:                 a.FxAsOf,
			FxProvider:             a.FxProvider,
		}
		if a.FxRate != nil {
			ar.FxRate = a.FxRate.String()
		}
		amounts = append(amounts, ar)
	}
	resp := PolicyResponse{
		ID:                p.ID,
		Name:              p.Name,
		ApplyScope:        string(p.ApplyScope),
		StrategyType:      string(p.StrategyType),
		Amounts:           amounts,
		SkippedCurrencies: res.Skipped,
	}
	if p.PercentOff != nil {
		resp.PercentOff = p.PercentOff.String()
	}
	return resp
}

func toCodeResponse(c *pricing.Code) CodeResponse {
	resp := CodeResponse{
		ID:        c.ID,
		Code:      c.Code,
		PolicyID:  c.PolicyID,
		Name:      c.Name,
		ScopeMode: string(c.ScopeMode),
	}
	if !c.ExpiresAt.IsZero() {
		expires := c.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

// DiscountAdminHandler serves discount policy, code and FX endpoints
type DiscountAdminHandler struct {
	BaseHandler
	discounts DiscountAdminService
	fx        FxSyncer
}

// NewDiscountAdminHandler creates a new DiscountAdminHandler
func NewDiscountAdminHandler(discounts DiscountAdminService, fx FxSyncer) *DiscountAdminHandler {
	return &DiscountAdminHandler{discounts: discounts, fx: fx}
}

// UpsertPolicy creates or replaces a discount policy
func (h *DiscountAdminHandler) UpsertPolicy(c *gin.Context) {
	var req UpsertPolicyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.discounts.UpsertPolicy(c.Request.Context(), req.toCommand())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if req.ID == 0 {
		h.Created(c, toPolicyResponse(res))
		return
	}
	h.Success(c, toPolicyResponse(res))
}

// CreateCode creates a discount code
func (h *DiscountAdminHandler) CreateCode(c *gin.Context) {
	var req CreateCodeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd := pricingapp.CreateCodeCommand{
		Code:       req.Code,
		PolicyID:   req.PolicyID,
		Name:       req.Name,
		ScopeMode:  pricing.ScopeMode(req.ScopeMode),
		ProductIDs: req.ProductIDs,
	}
	if req.ExpiresAt != nil {
		cmd.ExpiresAt = *req.ExpiresAt
	}

	code, err := h.discounts.CreateCode(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toCodeResponse(code))
}

// SyncFx pulls the latest rates, then re-derives FX_AUTO policy amounts from them
func (h *DiscountAdminHandler) SyncFx(c *gin.Context) {
	ctx := c.Request.Context()

	synced, err := h.fx.SyncLatest(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	report, err := h.discounts.RecomputeFxAmountsAll(ctx, 0)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, FxSyncResponse{
		RatesSynced:     synced,
		PoliciesScanned: report.Policies,
		PoliciesUpdated: report.Updated,
		PoliciesSkipped: report.Skipped,
	})
}
