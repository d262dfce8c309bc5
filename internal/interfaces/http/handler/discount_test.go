package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	pricingapp "github.com/intlshop/backend/internal/application/pricing"
	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
)

func discountRouter(discounts DiscountAdminService, fx FxSyncer) *gin.Engine {
	h := NewDiscountAdminHandler(discounts, fx)
	r := newRouter()
	r.POST("/admin/discount-policies", h.UpsertPolicy)
	r.POST("/admin/discount-codes", h.CreateCode)
	r.POST("/admin/fx/sync", h.SyncFx)
	r.GET("/admin/discount-policies", h.ListPolicies)
	r.PATCH("/admin/discount-policies/:policyId", h.PatchPolicy)
	r.DELETE("/admin/discount-policies/:policyId", h.DeletePolicy)
	r.GET("/admin/discount-codes", h.ListCodes)
	r.PATCH("/admin/discount-codes/:codeId", h.PatchCode)
	r.DELETE("/admin/discount-codes/:codeId", h.DeleteCode)
	r.GET("/admin/discount-codes/:codeId/products", h.CodeProducts)
	r.PUT("/admin/discount-codes/:codeId/products", h.ReplaceCodeProducts)
	return r
}

func int64Ptr(v int64) *int64 { return &v }

func TestDiscountAdminHandler_UpsertPolicy(t *testing.T) {
	t.Run("amount policy derives other currencies", func(t *testing.T) {
		discounts := new(MockDiscountAdminService)
		rate := decimal.RequireFromString("149.5")
		discounts.On("UpsertPolicy", mock.Anything, mock.MatchedBy(func(cmd pricingapp.UpsertPolicyCommand) bool {
			return cmd.ID == 0 && cmd.StrategyType == pricing.StrategyAmount && cmd.ApplyScope == pricing.ApplyScopeOrder &&
				len(cmd.Amounts) == 1 && cmd.Amounts[0].Currency == "USD" &&
				*cmd.Amounts[0].AmountOffMinor == 500 && cmd.Amounts[0].Source == pricing.AmountSourceManual
		})).Return(&pricingapp.PolicyResult{
			Policy: &pricing.Policy{
				ID:           3,
				Name:         "Five off",
				ApplyScope:   pricing.ApplyScopeOrder,
				StrategyType: pricing.StrategyAmount,
				Amounts: []pricing.PolicyAmount{
					{Currency: "USD", AmountOffMinor: int64Ptr(500), Source: pricing.AmountSourceManual},
					{Currency: "JPY", AmountOffMinor: int64Ptr(748), Source: pricing.AmountSourceFxAuto, DerivedFrom: "USD", FxRate: &rate},
				},
			},
			Skipped: []string{"KRW"},
		}, nil)

		w := doJSON(discountRouter(discounts, nil), http.MethodPost, "/admin/discount-policies", map[string]any{
			"name":          "Five off",
			"apply_scope":   "ORDER",
			"strategy_type": "AMOUNT",
			"amounts":       []map[string]any{{"currency": "USD", "amount_off_minor": 500}},
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp PolicyResponse
		decodeData(t, w, &resp)
		assert.Equal(t, int64(3), resp.ID)
		assert.Len(t, resp.Amounts, 2)
		assert.Equal(t, "FX_AUTO", resp.Amounts[1].Source)
		assert.Equal(t, "149.5", resp.Amounts[1].FxRate)
		assert.Equal(t, []string{"KRW"}, resp.SkippedCurrencies)
	})

	t.Run("percent policy update", func(t *testing.T) {
		discounts := new(MockDiscountAdminService)
		pct := decimal.RequireFromString("15")
		discounts.On("UpsertPolicy", mock.Anything, mock.MatchedBy(func(cmd pricingapp.UpsertPolicyCommand) bool {
			return cmd.ID == 3 && cmd.PercentOff != nil && cmd.PercentOff.Equal(pct)
		})).Return(&pricingapp.PolicyResult{Policy: &pricing.Policy{
			ID: 3, Name: "15%", ApplyScope: pricing.ApplyScopeItem, StrategyType: pricing.StrategyPercent, PercentOff: &pct,
		}}, nil)

		w := doJSON(discountRouter(discounts, nil), http.MethodPost, "/admin/discount-policies", map[string]any{
			"id":            3,
			"name":          "15%",
			"apply_scope":   "ITEM",
			"strategy_type": "PERCENT",
			"percent_off":   "15",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		var resp PolicyResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "15", resp.PercentOff)
	})

	t.Run("invalid strategy", func(t *testing.T) {
		discounts := new(MockDiscountAdminService)

		w := doJSON(discountRouter(discounts, nil), http.MethodPost, "/admin/discount-policies", map[string]any{
			"name": "x", "apply_scope": "ORDER", "strategy_type": "BOGO",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		discounts.AssertNotCalled(t, "UpsertPolicy")
	})

	t.Run("domain rejection", func(t *testing.T) {
		discounts := new(MockDiscountAdminService)
		discounts.On("UpsertPolicy", mock.Anything, mock.Anything).
			Return(nil, shared.NewIllegalParamError("percentOff must be in (0, 100]"))

		w := doJSON(discountRouter(discounts, nil), http.MethodPost, "/admin/discount-policies", map[string]any{
			"name": "x", "apply_scope": "ORDER", "strategy_type": "PERCENT", "percent_off": "150",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDiscountAdminHandler_CreateCode(t *testing.T) {
	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	discounts := new(MockDiscountAdminService)
	discounts.On("CreateCode", mock.Anything, mock.MatchedBy(func(cmd pricingapp.CreateCodeCommand) bool {
		return cmd.Code == "SPRING" && cmd.PolicyID == 3 && cmd.ScopeMode == pricing.ScopeInclude &&
			assert.ObjectsAreEqual([]int64{100, 101}, cmd.ProductIDs) && cmd.ExpiresAt.Equal(expires)
	})).Return(&pricing.Code{ID: 9, Code: "SPRING", PolicyID: 3, ScopeMode: pricing.ScopeInclude, ExpiresAt: expires}, nil)

	w := doJSON(discountRouter(discounts, nil), http.MethodPost, "/admin/discount-codes", map[string]any{
		"code":        "SPRING",
		"policy_id":   3,
		"scope_mode":  "INCLUDE",
		"product_ids": []int64{100, 101},
		"expires_at":  expires,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp CodeResponse
	decodeData(t, w, &resp)
	assert.Equal(t, int64(9), resp.ID)
	if assert.NotNil(t, resp.ExpiresAt) {
		assert.True(t, expires.Equal(*resp.ExpiresAt))
	}
	discounts.AssertExpectations(t)
}

func TestDiscountAdminHandler_CreateCodeDuplicate(t *testing.T) {
	discounts := new(MockDiscountAdminService)
	discounts.On("CreateCode", mock.Anything, mock.Anything).Return(nil, shared.NewConflictError("code SPRING already exists"))

	w := doJSON(discountRouter(discounts, nil), http.MethodPost, "/admin/discount-codes", map[string]any{
		"code": "SPRING", "policy_id": 3,
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDiscountAdminHandler_SyncFx(t *testing.T) {
	t.Run("sync then recompute", func(t *testing.T) {
		discounts := new(MockDiscountAdminService)
		fx := new(MockFxSyncer)
		fx.On("SyncLatest", mock.Anything).Return(4, nil)
		discounts.On("RecomputeFxAmountsAll", mock.Anything, 0).
			Return(pricingapp.RecomputeReport{Policies: 5, Updated: 3, Skipped: 1}, nil)

		w := doJSON(discountRouter(discounts, fx), http.MethodPost, "/admin/fx/sync", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp FxSyncResponse
		decodeData(t, w, &resp)
		assert.Equal(t, FxSyncResponse{RatesSynced: 4, PoliciesScanned: 5, PoliciesUpdated: 3, PoliciesSkipped: 1}, resp)
	})

	t.Run("feed failure skips recompute", func(t *testing.T) {
		discounts := new(MockDiscountAdminService)
		fx := new(MockFxSyncer)
		fx.On("SyncLatest", mock.Anything).Return(0, shared.NewGatewayError(errors.New("timeout"), "fx feed unavailable"))

		w := doJSON(discountRouter(discounts, fx), http.MethodPost, "/admin/fx/sync", nil)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		discounts.AssertNotCalled(t, "RecomputeFxAmountsAll")
	})
}
