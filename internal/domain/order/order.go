package order

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

// MaxNoteLength bounds free text stored in status logs and refund reasons
const MaxNoteLength = 255

// Item is an immutable price/quantity snapshot taken when the order is created
type Item struct {
	ID             int64
	ProductID      int64
	SkuID          int64
	Title          string
	SkuAttrs       string
	CoverImageURL  string
	UnitPrice      int64
	Quantity       int64
	SubtotalAmount int64
	DiscountCodeID *int64
}

// AddressSnapshot is the shipping address copied onto the order
type AddressSnapshot struct {
	ReceiverName string `json:"receiver_name"`
	Phone        string `json:"phone"`
	Country      string `json:"country"`
	Province     string `json:"province,omitempty"`
	City         string `json:"city"`
	District     string `json:"district,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	Zipcode      string `json:"zipcode,omitempty"`
}

// Validate checks the fields every carrier needs
func (a AddressSnapshot) Validate() error {
	if strings.TrimSpace(a.ReceiverName) == "" || strings.TrimSpace(a.Phone) == "" {
		return shared.NewIllegalParamError("receiver name and phone are required")
	}
	if strings.TrimSpace(a.Country) == "" || strings.TrimSpace(a.City) == "" || strings.TrimSpace(a.AddressLine1) == "" {
		return shared.NewIllegalParamError("country, city and address line are required")
	}
	return nil
}

// StatusLog is one append-only audit entry
type StatusLog struct {
	OrderID    int64
	FromStatus Status
	ToStatus   Status
	Source     EventSource
	Note       string
	At         time.Time
}

// Order is the order aggregate root
type Order struct {
	ID              int64
	OrderNo         string
	UserID          int64
	Status          Status
	Source          Source
	Currency        string
	Items           []Item
	TotalAmount     int64
	DiscountAmount  int64
	ShippingAmount  int64
	TaxAmount       int64
	PayAmount       int64
	DiscountCodeID  *int64
	Discounts       []pricing.Applied
	Address         AddressSnapshot
	AddressChanged  bool
	ActivePaymentID *int64
	CancelReason    string
	Refund          *RefundRequest
	PaidAt          *time.Time
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams carries everything priced before the order is built
type CreateParams struct {
	OrderNo        string
	UserID         int64
	Source         Source
	Currency       string
	Items          []Item
	DiscountAmount int64
	ShippingAmount int64
	TaxAmount      int64
	DiscountCodeID *int64
	Discounts      []pricing.Applied
	Address        AddressSnapshot
	Now            time.Time
}

// New builds a PENDING_PAYMENT order and its opening status log entry
func New(p CreateParams) (*Order, StatusLog, error) {
	if p.OrderNo == "" || p.UserID <= 0 {
		return nil, StatusLog{}, shared.NewIllegalParamError("order number and user are required")
	}
	if len(p.Items) == 0 {
		return nil, StatusLog{}, shared.NewIllegalParamError("order must contain at least one item")
	}
	currency, err := valueobject.NormalizeCurrencyCode(p.Currency)
	if err != nil {
		return nil, StatusLog{}, err
	}
	if err := p.Address.Validate(); err != nil {
		return nil, StatusLog{}, err
	}
	total := valueobject.Zero(currency)
	items := make([]Item, len(p.Items))
	for i, it := range p.Items {
		if it.Quantity < 1 || it.UnitPrice < 0 {
			return nil, StatusLog{}, shared.NewIllegalParamError("invalid quantity or price for sku %d", it.SkuID)
		}
		sub, err := valueobject.MustMoney(currency, it.UnitPrice).Multiply(it.Quantity)
		if err != nil {
			return nil, StatusLog{}, err
		}
		it.SubtotalAmount = sub.AmountMinor()
		if total, err = total.Add(sub); err != nil {
			return nil, StatusLog{}, err
		}
		items[i] = it
	}

	o := &Order{
		OrderNo:        p.OrderNo,
		UserID:         p.UserID,
		Status:         StatusPendingPayment,
		Source:         p.Source,
		Currency:       currency,
		Items:          items,
		TotalAmount:    total.AmountMinor(),
		DiscountCodeID: p.DiscountCodeID,
		Discounts:      p.Discounts,
		Address:        p.Address,
		CreatedAt:      p.Now,
		UpdatedAt:      p.Now,
	}
	if err := o.Recalculate(p.DiscountAmount, p.ShippingAmount, p.TaxAmount); err != nil {
		return nil, StatusLog{}, err
	}
	return o, StatusLog{ToStatus: StatusPendingPayment, Source: SourceUser, Note: "order created", At: p.Now}, nil
}

// Recalculate sets the adjustments and derives payAmount = total - discount + shipping + tax
func (o *Order) Recalculate(discount, shipping, tax int64) error {
	if discount < 0 || shipping < 0 || tax < 0 {
		return shared.NewIllegalParamError("amount adjustments must not be negative")
	}
	if discount > o.TotalAmount {
		return shared.NewIllegalParamError("discount %d exceeds total %d", discount, o.TotalAmount)
	}
	pay := valueobject.MustMoney(o.Currency, o.TotalAmount)
	var err error
	if pay, err = pay.Subtract(valueobject.MustMoney(o.Currency, discount)); err != nil {
		return err
	}
	if pay, err = pay.Add(valueobject.MustMoney(o.Currency, shipping)); err != nil {
		return err
	}
	if pay, err = pay.Add(valueobject.MustMoney(o.Currency, tax)); err != nil {
		return err
	}
	o.DiscountAmount, o.ShippingAmount, o.TaxAmount, o.PayAmount = discount, shipping, tax, pay.AmountMinor()
	return nil
}

// PayAmountConsistent checks the payAmount identity
func (o *Order) PayAmountConsistent() bool {
	return o.PayAmount == o.TotalAmount-o.DiscountAmount+o.ShippingAmount+o.TaxAmount
}

func (o *Order) transition(to Status, source EventSource, note string, at time.Time) (StatusLog, error) {
	if !o.Status.CanTransitionTo(to) {
		return StatusLog{}, shared.NewConflictError("order %s cannot move from %s to %s", o.OrderNo, o.Status, to)
	}
	log := StatusLog{OrderID: o.ID, FromStatus: o.Status, ToStatus: to, Source: source, Note: TruncateNote(note), At: at}
	o.Status = to
	o.UpdatedAt = at
	return log, nil
}

// Cancel moves an unpaid order to CANCELLED
func (o *Order) Cancel(source EventSource, reason string, at time.Time) (StatusLog, error) {
	log, err := o.transition(StatusCancelled, source, reason, at)
	if err != nil {
		return StatusLog{}, err
	}
	o.CancelReason = log.Note
	o.CancelledAt = &at
	return log, nil
}

// Close ends an unpaid or paid order for operational reasons
func (o *Order) Close(source EventSource, note string, at time.Time) (StatusLog, error) {
	return o.transition(StatusClosed, source, note, at)
}

// MarkPaid records a settled capture
func (o *Order) MarkPaid(at time.Time) (StatusLog, error) {
	log, err := o.transition(StatusPaid, SourcePaymentCallback, "payment captured", at)
	if err != nil {
		return StatusLog{}, err
	}
	o.PaidAt = &at
	return log, nil
}

// RequestRefund records the shopper's refund request
func (o *Order) RequestRefund(req RefundRequest, at time.Time) (StatusLog, error) {
	log, err := o.transition(StatusRefundRequested, SourceUser, req.Note(), at)
	if err != nil {
		return StatusLog{}, err
	}
	o.Refund = &req
	return log, nil
}

// MarkRefunded completes a confirmed refund
func (o *Order) MarkRefunded(source EventSource, note string, at time.Time) (StatusLog, error) {
	return o.transition(StatusRefunded, source, note, at)
}

// ChangeAddress replaces the address snapshot. It is allowed once, before shipment.
func (o *Order) ChangeAddress(addr AddressSnapshot, at time.Time) error {
	if !o.Status.IsPreShipment() {
		return shared.NewConflictError("order %s address can no longer change in %s", o.OrderNo, o.Status)
	}
	if o.AddressChanged {
		return shared.NewConflictError("order %s address was already changed", o.OrderNo)
	}
	if err := addr.Validate(); err != nil {
		return err
	}
	o.Address = addr
	o.AddressChanged = true
	o.UpdatedAt = at
	return nil
}

// ItemByID returns the line with the given id
func (o *Order) ItemByID(id int64) (Item, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// TruncateNote clips free text to MaxNoteLength runes
func TruncateNote(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxNoteLength {
		return s
	}
	return string([]rune(s)[:MaxNoteLength])
}

func (o *Order) String() string {
	return fmt.Sprintf("order %s (%s, %s %d)", o.OrderNo, o.Status, o.Currency, o.PayAmount)
}
