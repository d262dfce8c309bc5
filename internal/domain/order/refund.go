package order

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

// MaxRefundAttachments bounds the evidence images a shopper can attach
const MaxRefundAttachments = 9

// RefundReasonCode categorizes a refund request
type RefundReasonCode string

const (
	ReasonNotReceived    RefundReasonCode = "NOT_RECEIVED"
	ReasonDamaged        RefundReasonCode = "DAMAGED"
	ReasonWrongItem      RefundReasonCode = "WRONG_ITEM"
	ReasonNotAsDescribed RefundReasonCode = "NOT_AS_DESCRIBED"
	ReasonChangedMind    RefundReasonCode = "CHANGED_MIND"
	ReasonOther          RefundReasonCode = "OTHER"
)

// IsValid checks if the code is known
func (c RefundReasonCode) IsValid() bool {
	switch c {
	case ReasonNotReceived, ReasonDamaged, ReasonWrongItem, ReasonNotAsDescribed, ReasonChangedMind, ReasonOther:
		return true
	}
	return false
}

// RefundRequest is the shopper's stated reason for a refund
type RefundRequest struct {
	Code        RefundReasonCode
	Text        string
	Attachments []string
}

// NewRefundRequest normalizes and validates a refund request
func NewRefundRequest(code RefundReasonCode, text string, attachments []string) (RefundRequest, error) {
	if !code.IsValid() {
		return RefundRequest{}, shared.NewIllegalParamError("unknown refund reason %q", code)
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > MaxNoteLength {
		return RefundRequest{}, shared.NewIllegalParamError("refund reason text exceeds %d characters", MaxNoteLength)
	}
	clean := make([]string, 0, len(attachments))
	for _, a := range attachments {
		if a = strings.TrimSpace(a); a != "" {
			clean = append(clean, a)
		}
	}
	if len(clean) > MaxRefundAttachments {
		return RefundRequest{}, shared.NewIllegalParamError("at most %d attachments are allowed", MaxRefundAttachments)
	}
	return RefundRequest{Code: code, Text: text, Attachments: clean}, nil
}

// Note renders the request for the status log
func (r RefundRequest) Note() string {
	return TruncateNote(fmt.Sprintf("reasonCode=%s, reasonText=%s, attachments=%d", r.Code, r.Text, len(r.Attachments)))
}

// RefundItemInput asks to refund part of one order line
type RefundItemInput struct {
	OrderItemID int64
	Quantity    int64
	AmountMinor *int64
	Reason      string
}

// ConfirmRefundCommand is the admin's refund plan; an empty command refunds everything
type ConfirmRefundCommand struct {
	ItemsAmountMinor    *int64
	ShippingAmountMinor *int64
	Items               []RefundItemInput
	Note                string
}

// RefundPlanItem is one line of an itemized refund
type RefundPlanItem struct {
	OrderItemID int64
	SkuID       int64
	Quantity    int64
	AmountMinor int64
	Reason      string
}

// RefundPlan is a validated refund ready to be issued
type RefundPlan struct {
	AmountMinor         int64
	ItemsAmountMinor    int64
	ShippingAmountMinor int64
	Full                bool
	Items               []RefundPlanItem
}

// RestockQuantities aggregates the quantities to return to stock per SKU
func (p RefundPlan) RestockQuantities(o *Order) map[int64]int64 {
	out := make(map[int64]int64)
	if len(p.Items) == 0 {
		for _, it := range o.Items {
			out[it.SkuID] += it.Quantity
		}
		return out
	}
	for _, it := range p.Items {
		out[it.SkuID] += it.Quantity
	}
	return out
}

// PlanRefund validates cmd against the order and what was actually paid.
// Unpriced item lines are refunded pro rata to their subtotal.
func (o *Order) PlanRefund(cmd ConfirmRefundCommand, cfg valueobject.CurrencyConfig, paidMinor int64) (RefundPlan, error) {
	if o.Status != StatusRefundRequested {
		return RefundPlan{}, shared.NewConflictError("order %s is %s, refund cannot be confirmed", o.OrderNo, o.Status)
	}
	plan := RefundPlan{}
	if cmd.ShippingAmountMinor != nil {
		if *cmd.ShippingAmountMinor < 0 || *cmd.ShippingAmountMinor > o.ShippingAmount {
			return RefundPlan{}, shared.NewIllegalParamError("shipping refund must be within [0, %d]", o.ShippingAmount)
		}
		plan.ShippingAmountMinor = *cmd.ShippingAmountMinor
	}

	switch {
	case len(cmd.Items) > 0:
		requested := make(map[int64]int64)
		for _, in := range cmd.Items {
			it, ok := o.ItemByID(in.OrderItemID)
			if !ok {
				return RefundPlan{}, shared.NewIllegalParamError("order item %d does not belong to %s", in.OrderItemID, o.OrderNo)
			}
			if in.Quantity <= 0 {
				return RefundPlan{}, shared.NewIllegalParamError("refund quantity must be positive")
			}
			requested[in.OrderItemID] += in.Quantity
			if requested[in.OrderItemID] > it.Quantity {
				return RefundPlan{}, shared.NewIllegalParamError("refund quantity for item %d exceeds ordered %d", it.ID, it.Quantity)
			}
			amount, err := lineRefundAmount(it, in, cfg)
			if err != nil {
				return RefundPlan{}, err
			}
			plan.Items = append(plan.Items, RefundPlanItem{
				OrderItemID: it.ID,
				SkuID:       it.SkuID,
				Quantity:    in.Quantity,
				AmountMinor: amount,
				Reason:      TruncateNote(in.Reason),
			})
			plan.ItemsAmountMinor += amount
		}
	case cmd.ItemsAmountMinor != nil:
		if *cmd.ItemsAmountMinor < 0 {
			return RefundPlan{}, shared.NewIllegalParamError("items refund amount must not be negative")
		}
		plan.ItemsAmountMinor = *cmd.ItemsAmountMinor
	case cmd.ShippingAmountMinor == nil:
		plan.Full = true
		plan.AmountMinor = paidMinor
		return plan, nil
	}

	plan.AmountMinor = plan.ItemsAmountMinor + plan.ShippingAmountMinor
	if plan.AmountMinor <= 0 {
		return RefundPlan{}, shared.NewIllegalParamError("refund amount must be positive")
	}
	if plan.AmountMinor > paidMinor {
		return RefundPlan{}, shared.NewIllegalParamError("refund %d exceeds paid amount %d", plan.AmountMinor, paidMinor)
	}
	return plan, nil
}

func lineRefundAmount(it Item, in RefundItemInput, cfg valueobject.CurrencyConfig) (int64, error) {
	if in.AmountMinor != nil {
		if *in.AmountMinor <= 0 {
			return 0, shared.NewIllegalParamError("refund amount for item %d must be positive", it.ID)
		}
		if *in.AmountMinor > it.SubtotalAmount {
			return 0, shared.NewIllegalParamError("refund amount for item %d exceeds its subtotal", it.ID)
		}
		return *in.AmountMinor, nil
	}
	share := decimal.NewFromInt(it.SubtotalAmount).Mul(decimal.NewFromInt(in.Quantity)).Div(decimal.NewFromInt(it.Quantity))
	amount, err := cfg.RoundMinor(share)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, shared.NewIllegalParamError("refund amount for item %d rounds to zero", it.ID)
	}
	return amount, nil
}
