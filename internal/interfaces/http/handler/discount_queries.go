package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	pricingapp "github.com/intlshop/backend/internal/application/pricing"
	"github.com/intlshop/backend/internal/domain/pricing"
)

// PolicyListQuery filters the policy list
type PolicyListQuery struct {
	StrategyType string `form:"strategy_type" binding:"omitempty,oneof=PERCENT AMOUNT"`
	Name         string `form:"name" binding:"omitempty,max=128"`
	Page         int    `form:"page" binding:"omitempty,gte=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,gte=1,lte=100"`
}

// CodeListQuery filters the code list
type CodeListQuery struct {
	PolicyID int64  `form:"policy_id" binding:"omitempty,gt=0"`
	Code     string `form:"code" binding:"omitempty,max=64"`
	Page     int    `form:"page" binding:"omitempty,gte=1"`
	PageSize int    `form:"page_size" binding:"omitempty,gte=1,lte=100"`
}

// PatchPolicyRequest changes the fields present in the body. Omitting amounts
// keeps the manual entries.
type PatchPolicyRequest struct {
	Name         *string               `json:"name" binding:"omitempty,min=1,max=128"`
	ApplyScope   *string               `json:"apply_scope" binding:"omitempty,oneof=ORDER ITEM"`
	StrategyType *string               `json:"strategy_type" binding:"omitempty,oneof=PERCENT AMOUNT"`
	PercentOff   *decimal.Decimal      `json:"percent_off"`
	Amounts      []PolicyAmountRequest `json:"amounts" binding:"omitempty,max=64,dive"`
}

func (r PatchPolicyRequest) toCommand() pricingapp.PatchPolicyCommand {
	cmd := pricingapp.PatchPolicyCommand{Name: r.Name, PercentOff: r.PercentOff}
	if r.ApplyScope != nil {
		scope := pricing.ApplyScope(*r.ApplyScope)
		cmd.ApplyScope = &scope
	}
	if r.StrategyType != nil {
		strategy := pricing.StrategyType(*r.StrategyType)
		cmd.StrategyType = &strategy
	}
	if r.Amounts != nil {
		cmd.Amounts = toPolicyAmounts(r.Amounts)
	}
	return cmd
}

// PatchCodeRequest changes the fields present in the body
type PatchCodeRequest struct {
	Name        *string    `json:"name" binding:"omitempty,max=128"`
	PolicyID    *int64     `json:"policy_id" binding:"omitempty,gt=0"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

// CodeProductsRequest replaces the product scope of a code
type CodeProductsRequest struct {
	ScopeMode  string  `json:"scope_mode" binding:"required,oneof=ALL INCLUDE EXCLUDE"`
	ProductIDs []int64 `json:"product_ids" binding:"omitempty,max=1000,dive,gt=0"`
}

// CodeProductsResponse is the product scope of a code
type CodeProductsResponse struct {
	CodeID     int64   `json:"code_id"`
	ScopeMode  string  `json:"scope_mode"`
	ProductIDs []int64 `json:"product_ids"`
}

func toCodeProductsResponse(cp *pricingapp.CodeProducts) CodeProductsResponse {
	ids := cp.ProductIDs
	if ids == nil {
		ids = []int64{}
	}
	return CodeProductsResponse{CodeID: cp.Code.ID, ScopeMode: string(cp.Code.ScopeMode), ProductIDs: ids}
}

// ListPolicies pages through discount policies
func (h *DiscountAdminHandler) ListPolicies(c *gin.Context) {
	var q PolicyListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	page := pricingapp.Page{Page: q.Page, PageSize: q.PageSize}.Normalized()

	policies, total, err := h.discounts.ListPolicies(c.Request.Context(), pricingapp.PolicyQuery{
		Page:         page,
		StrategyType: pricing.StrategyType(q.StrategyType),
		Name:         q.Name,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, toPolicyResponse(&pricingapp.PolicyResult{Policy: p}))
	}
	h.SuccessWithMeta(c, out, total, page.Page, page.PageSize)
}

// PatchPolicy partially updates a policy
func (h *DiscountAdminHandler) PatchPolicy(c *gin.Context) {
	id, ok := h.paramID(c, "policyId")
	if !ok {
		return
	}
	var req PatchPolicyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.discounts.PatchPolicy(c.Request.Context(), id, req.toCommand())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPolicyResponse(res))
}

// DeletePolicy removes a policy with no codes
func (h *DiscountAdminHandler) DeletePolicy(c *gin.Context) {
	id, ok := h.paramID(c, "policyId")
	if !ok {
		return
	}

	if err := h.discounts.DeletePolicy(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListCodes pages through discount codes
func (h *DiscountAdminHandler) ListCodes(c *gin.Context) {
	var q CodeListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	page := pricingapp.Page{Page: q.Page, PageSize: q.PageSize}.Normalized()

	codes, total, err := h.discounts.ListCodes(c.Request.Context(), pricingapp.CodeQuery{
		Page:     page,
		PolicyID: q.PolicyID,
		Code:     q.Code,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]CodeResponse, 0, len(codes))
	for _, code := range codes {
		out = append(out, toCodeResponse(code))
	}
	h.SuccessWithMeta(c, out, total, page.Page, page.PageSize)
}

// PatchCode changes the name, policy or expiry of a code
func (h *DiscountAdminHandler) PatchCode(c *gin.Context) {
	id, ok := h.paramID(c, "codeId")
	if !ok {
		return
	}
	var req PatchCodeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	code, err := h.discounts.PatchCode(c.Request.Context(), id, pricingapp.PatchCodeCommand{
		Name:        req.Name,
		PolicyID:    req.PolicyID,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCodeResponse(code))
}

// DeleteCode removes a code no order has used
func (h *DiscountAdminHandler) DeleteCode(c *gin.Context) {
	id, ok := h.paramID(c, "codeId")
	if !ok {
		return
	}

	if err := h.discounts.DeleteCode(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// CodeProducts returns the product scope of a code
func (h *DiscountAdminHandler) CodeProducts(c *gin.Context) {
	id, ok := h.paramID(c, "codeId")
	if !ok {
		return
	}

	cp, err := h.discounts.CodeProducts(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCodeProductsResponse(cp))
}

// ReplaceCodeProducts sets the scope mode and product set of a code
func (h *DiscountAdminHandler) ReplaceCodeProducts(c *gin.Context) {
	id, ok := h.paramID(c, "codeId")
	if !ok {
		return
	}
	var req CodeProductsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cp, err := h.discounts.ReplaceCodeProducts(c.Request.Context(), id, pricing.ScopeMode(req.ScopeMode), req.ProductIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCodeProductsResponse(cp))
}
