package order

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
	"github.com/intlshop/backend/internal/domain/shared/valueobject"
)

const (
	// DefaultPaymentTTL is how long an order waits for payment before it times out
	DefaultPaymentTTL = 30 * time.Minute
	// DefaultAddressChangeTTL bounds how long the address-change marker is kept
	DefaultAddressChangeTTL = 180 * 24 * time.Hour
	// DefaultTimeoutReason is the cancel reason written by the timeout job
	DefaultTimeoutReason = "payment timeout"

	attachmentURLTTL  = 15 * time.Minute
	attachmentPrefix  = "refund-attachments"
	maxBatch          = 200
	maxFileNameLength = 100
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DiscountCalculator prices discount codes
type DiscountCalculator interface {
	Compute(ctx context.Context, req pricing.Request) (pricing.Outcome, error)
	BaseCurrency() string
}

// Metrics records order-side business counters
type Metrics interface {
	RecordOrderCreated(ctx context.Context, currency string, source string)
	RecordDiscountFailure(ctx context.Context, reason string)
}

type noopMetrics struct{}

func (noopMetrics) RecordOrderCreated(context.Context, string, string) {}
func (noopMetrics) RecordDiscountFailure(context.Context, string)      {}

// Config holds the dependencies and tunables of Service
type Config struct {
	Orders      order.Repository
	Skus        order.SkuReader
	Carts       order.CartReader
	Discounts   DiscountCalculator
	Claims      order.AddressChangeClaim
	Attachments order.AttachmentStorage
	IDs         shared.IDGenerator
	Clock       shared.Clock
	Metrics     Metrics
	Logger      *zap.Logger

	PaymentTTL       time.Duration
	AddressChangeTTL time.Duration
	TimeoutReason    string
}

// LineInput is one requested SKU for a DIRECT order
type LineInput struct {
	SkuID    int64
	Quantity int64
}

// PriceInput selects what to price. CART orders use the given cart item ids,
// or every selected line when none are given.
type PriceInput struct {
	Source       order.Source
	Items        []LineInput
	CartItemIDs  []int64
	Currency     string
	DiscountCode string
}

// CreateInput is PriceInput plus the shipping address
type CreateInput struct {
	PriceInput
	Address order.AddressSnapshot
}

// Quote is a priced but unsaved order
type Quote struct {
	Currency         string
	CurrencyFallback bool
	Items            []order.Item
	TotalAmount      int64
	DiscountAmount   int64
	ShippingAmount   int64
	TaxAmount        int64
	PayAmount        int64
	DiscountCodeID   *int64
	Discounts        []pricing.Applied
	DiscountFailure  *pricing.Failure
}

// Detail is an order with its audit trail
type Detail struct {
	Order *order.Order
	Logs  []order.StatusLog
	// DiscountFailure is set on creation when a supplied code could not be applied
	DiscountFailure *pricing.Failure
}

// RefundRequestInput is the shopper's refund request
type RefundRequestInput struct {
	ReasonCode  order.RefundReasonCode
	ReasonText  string
	Attachments []string
}

// UploadTicket is a presigned upload for one refund attachment
type UploadTicket struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// BatchReport summarizes a batch job pass
type BatchReport struct {
	Scanned   int
	Processed int
	Failed    int
}

// Service implements the shopper-facing order operations
type Service struct {
	orders      order.Repository
	skus        order.SkuReader
	carts       order.CartReader
	discounts   DiscountCalculator
	claims      order.AddressChangeClaim
	attachments order.AttachmentStorage
	ids         shared.IDGenerator
	clock       shared.Clock
	metrics     Metrics
	logger      *zap.Logger

	paymentTTL       time.Duration
	addressChangeTTL time.Duration
	timeoutReason    string
}

// NewService creates an order Service
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	ids := cfg.IDs
	if ids == nil {
		ids = shared.UUIDGenerator{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	s := &Service{
		orders:           cfg.Orders,
		skus:             cfg.Skus,
		carts:            cfg.Carts,
		discounts:        cfg.Discounts,
		claims:           cfg.Claims,
		attachments:      cfg.Attachments,
		ids:              ids,
		clock:            clock,
		metrics:          metrics,
		logger:           logger,
		paymentTTL:       cfg.PaymentTTL,
		addressChangeTTL: cfg.AddressChangeTTL,
		timeoutReason:    cfg.TimeoutReason,
	}
	if s.paymentTTL <= 0 {
		s.paymentTTL = DefaultPaymentTTL
	}
	if s.addressChangeTTL <= 0 {
		s.addressChangeTTL = DefaultAddressChangeTTL
	}
	if s.timeoutReason == "" {
		s.timeoutReason = DefaultTimeoutReason
	}
	return s
}

// Preview prices the input without persisting anything
func (s *Service) Preview(ctx context.Context, userID int64, in PriceInput) (*Quote, error) {
	p, err := s.price(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	return p.quote, nil
}

// Create prices the input and persists the order, reserving stock and
// consuming the cart lines in one transaction
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*Detail, error) {
	if err := in.Address.Validate(); err != nil {
		return nil, err
	}
	p, err := s.price(ctx, userID, in.PriceInput)
	if err != nil {
		return nil, err
	}
	q := p.quote
	o, log, err := order.New(order.CreateParams{
		OrderNo:        s.ids.NewID("ORD"),
		UserID:         userID,
		Source:         in.Source,
		Currency:       q.Currency,
		Items:          q.Items,
		DiscountAmount: q.DiscountAmount,
		ShippingAmount: q.ShippingAmount,
		TaxAmount:      q.TaxAmount,
		DiscountCodeID: q.DiscountCodeID,
		Discounts:      q.Discounts,
		Address:        in.Address,
		Now:            s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.orders.CreateOrderAndReserveStock(ctx, o, log, p.cartItemIDs); err != nil {
		s.logger.Warn("order create failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	s.metrics.RecordOrderCreated(ctx, o.Currency, string(o.Source))
	s.logger.Info("order created",
		zap.String("order_no", o.OrderNo),
		zap.Int64("user_id", userID),
		zap.String("currency", o.Currency),
		zap.Int64("pay_amount", o.PayAmount),
		zap.Int64("discount_amount", o.DiscountAmount))
	return &Detail{Order: o, Logs: []order.StatusLog{log}, DiscountFailure: q.DiscountFailure}, nil
}

// Get returns the user's order with its status log
func (s *Service) Get(ctx context.Context, userID int64, orderNo string) (*Detail, error) {
	o, err := s.loadOwned(ctx, userID, orderNo)
	if err != nil {
		return nil, err
	}
	logs, err := s.orders.ListStatusLogs(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Order: o, Logs: logs}, nil
}

// Cancel cancels the user's unpaid order and releases its stock
func (s *Service) Cancel(ctx context.Context, userID int64, orderNo, reason string) (*order.Order, error) {
	o, err := s.loadOwned(ctx, userID, orderNo)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by user"
	}
	return s.cancel(ctx, o, order.SourceUser, reason)
}

func (s *Service) cancel(ctx context.Context, o *order.Order, source order.EventSource, reason string) (*order.Order, error) {
	log, err := o.Cancel(source, reason, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.orders.CancelAndReleaseStock(ctx, o, log); err != nil {
		return nil, err
	}
	releaseAddressClaim(ctx, s.claims, s.logger, o.OrderNo)
	s.logger.Info("order cancelled",
		zap.String("order_no", o.OrderNo),
		zap.String("source", string(source)),
		zap.String("reason", log.Note))
	return o, nil
}

// CancelTimedOut cancels unpaid orders older than the payment TTL
func (s *Service) CancelTimedOut(ctx context.Context, limit int) (BatchReport, error) {
	limit = clampLimit(limit)
	deadline := s.clock.Now().Add(-s.paymentTTL)
	orderNos, err := s.orders.ListTimeoutCandidates(ctx, deadline, limit)
	if err != nil {
		return BatchReport{}, fmt.Errorf("list timeout candidates: %w", err)
	}
	report := BatchReport{Scanned: len(orderNos)}
	for _, no := range orderNos {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		o, err := s.orders.FindByOrderNo(ctx, no)
		if err == nil {
			_, err = s.cancel(ctx, o, order.SourceScheduler, s.timeoutReason)
		}
		switch {
		case err == nil:
			report.Processed++
		case shared.IsConflict(err) || shared.IsNotFound(err):
			s.logger.Debug("timeout cancel skipped", zap.String("order_no", no), zap.Error(err))
		default:
			report.Failed++
			s.logger.Warn("timeout cancel failed", zap.String("order_no", no), zap.Error(err))
		}
	}
	return report, nil
}

// ChangeAddress replaces the shipping address once, before shipment. The
// claim is taken before any validation and released again on failure.
func (s *Service) ChangeAddress(ctx context.Context, userID int64, orderNo string, addr order.AddressSnapshot) (*order.Order, error) {
	o, err := s.loadOwned(ctx, userID, orderNo)
	if err != nil {
		return nil, err
	}
	if s.claims != nil {
		ok, err := s.claims.TryMarkChanged(ctx, o.OrderNo, s.addressChangeTTL)
		if err != nil {
			return nil, fmt.Errorf("claim address change: %w", err)
		}
		if !ok {
			return nil, shared.NewConflictError("order %s address was already changed", o.OrderNo)
		}
	}
	if err := s.applyAddressChange(ctx, o, addr); err != nil {
		releaseAddressClaim(ctx, s.claims, s.logger, o.OrderNo)
		return nil, err
	}
	s.logger.Info("order address changed", zap.String("order_no", o.OrderNo))
	return o, nil
}

func (s *Service) applyAddressChange(ctx context.Context, o *order.Order, addr order.AddressSnapshot) error {
	if err := o.ChangeAddress(addr, s.clock.Now()); err != nil {
		return err
	}
	return s.orders.UpdateAddressSnapshot(ctx, o)
}

// releaseAddressClaim drops the address-change marker. Failures are logged only.
func releaseAddressClaim(ctx context.Context, claims order.AddressChangeClaim, logger *zap.Logger, orderNo string) {
	if claims == nil {
		return
	}
	if err := claims.Clear(ctx, orderNo); err != nil {
		logger.Warn("address claim release failed", zap.String("order_no", orderNo), zap.Error(err))
	}
}

// RequestRefund moves a paid order to REFUND_REQUESTED
func (s *Service) RequestRefund(ctx context.Context, userID int64, orderNo string, in RefundRequestInput) (*order.Order, error) {
	req, err := order.NewRefundRequest(in.ReasonCode, in.ReasonText, in.Attachments)
	if err != nil {
		return nil, err
	}
	o, err := s.loadOwned(ctx, userID, orderNo)
	if err != nil {
		return nil, err
	}
	log, err := o.RequestRefund(req, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.orders.SaveRefundRequest(ctx, o, log); err != nil {
		return nil, err
	}
	s.logger.Info("refund requested", zap.String("order_no", o.OrderNo), zap.String("reason_code", string(req.Code)))
	return o, nil
}

// PresignRefundAttachment issues an upload URL for refund evidence
func (s *Service) PresignRefundAttachment(ctx context.Context, userID int64, orderNo, fileName, contentType string) (*UploadTicket, error) {
	if s.attachments == nil {
		return nil, shared.NewConflictError("attachment storage is not configured")
	}
	if !allowedAttachmentType(contentType) {
		return nil, shared.NewIllegalParamError("unsupported attachment type %q", contentType)
	}
	name := sanitizeFileName(fileName)
	if name == "" {
		return nil, shared.NewIllegalParamError("file name is required")
	}
	o, err := s.loadOwned(ctx, userID, orderNo)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPaid && o.Status != order.StatusRefundRequested {
		return nil, shared.NewConflictError("order %s is %s, refund evidence is not accepted", o.OrderNo, o.Status)
	}
	key := path.Join(attachmentPrefix, o.OrderNo, uuid.NewString()+"-"+name)
	url, err := s.attachments.PresignUpload(ctx, key, contentType, attachmentURLTTL)
	if err != nil {
		return nil, err
	}
	return &UploadTicket{Key: key, URL: url, ExpiresAt: s.clock.Now().Add(attachmentURLTTL)}, nil
}

func (s *Service) loadOwned(ctx context.Context, userID int64, orderNo string) (*order.Order, error) {
	if strings.TrimSpace(orderNo) == "" {
		return nil, shared.NewIllegalParamError("order number is required")
	}
	o, err := s.orders.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, shared.NewNotFoundError("order %s not found", orderNo)
	}
	return o, nil
}

type priced struct {
	quote       *Quote
	cartItemIDs []int64
}

func (s *Service) price(ctx context.Context, userID int64, in PriceInput) (*priced, error) {
	lines, cartIDs, err := s.resolveLines(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	base := s.discounts.BaseCurrency()
	currency := base
	if strings.TrimSpace(in.Currency) != "" {
		if currency, err = valueobject.NormalizeCurrencyCode(in.Currency); err != nil {
			return nil, err
		}
	}

	skuIDs := make([]int64, len(lines))
	for i, l := range lines {
		skuIDs[i] = l.SkuID
	}
	snaps, err := s.skus.ListSaleSnapshots(ctx, skuIDs, currency)
	if err != nil {
		return nil, err
	}
	fallback := false
	if currency != base && missingPrice(snaps, skuIDs) {
		s.logger.Info("sku price missing in requested currency, using base",
			zap.String("currency", currency), zap.String("base_currency", base))
		currency, fallback = base, true
		if snaps, err = s.skus.ListSaleSnapshots(ctx, skuIDs, currency); err != nil {
			return nil, err
		}
	}

	q := &Quote{Currency: currency, CurrencyFallback: fallback}
	total := valueobject.Zero(currency)
	engineLines := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		snap, ok := snaps[l.SkuID]
		if !ok {
			return nil, shared.NewNotFoundError("sku %d is not on sale", l.SkuID)
		}
		if snap.UnitPriceMinor == nil {
			return nil, shared.NewConflictError("sku %d has no price in %s", l.SkuID, currency)
		}
		if snap.Stock < l.Quantity {
			return nil, shared.NewConflictError("sku %d has insufficient stock", l.SkuID)
		}
		sub, err := valueobject.MustMoney(currency, *snap.UnitPriceMinor).Multiply(l.Quantity)
		if err != nil {
			return nil, err
		}
		if total, err = total.Add(sub); err != nil {
			return nil, err
		}
		q.Items = append(q.Items, order.Item{
			ProductID:      snap.ProductID,
			SkuID:          snap.SkuID,
			Title:          snap.Title,
			SkuAttrs:       snap.SkuAttrs,
			CoverImageURL:  snap.CoverImageURL,
			UnitPrice:      *snap.UnitPriceMinor,
			Quantity:       l.Quantity,
			SubtotalAmount: sub.AmountMinor(),
		})
		engineLines = append(engineLines, pricing.Line{
			SkuID: snap.SkuID, ProductID: snap.ProductID, Quantity: l.Quantity, SubtotalMinor: sub.AmountMinor(),
		})
	}
	q.TotalAmount = total.AmountMinor()

	if code := strings.TrimSpace(in.DiscountCode); code != "" {
		outcome, err := s.discounts.Compute(ctx, pricing.Request{Currency: currency, Code: code, Lines: engineLines})
		if err != nil {
			return nil, err
		}
		if comp, ok := outcome.Get(); ok {
			id := comp.DiscountCodeID
			q.DiscountAmount = comp.DiscountAmountMinor
			q.DiscountCodeID = &id
			q.Discounts = comp.Applied
			for i := range q.Items {
				if comp.EligibleSkuIDs[q.Items[i].SkuID] {
					q.Items[i].DiscountCodeID = &id
				}
			}
		} else {
			f := outcome.Failure()
			q.DiscountFailure = &f
			s.metrics.RecordDiscountFailure(ctx, string(f.Reason))
			s.logger.Warn("discount not applied",
				zap.Int64("user_id", userID),
				zap.String("code", pricing.NormalizeCodeText(code)),
				zap.String("currency", currency),
				zap.String("reason", string(f.Reason)),
				zap.String("detail", f.Detail))
		}
	}

	pay, err := total.Subtract(valueobject.MustMoney(currency, q.DiscountAmount))
	if err != nil {
		return nil, err
	}
	if pay.IsNegative() {
		return nil, shared.NewConflictError("discount exceeds order total")
	}
	q.PayAmount = pay.AmountMinor()
	return &priced{quote: q, cartItemIDs: cartIDs}, nil
}

// resolveLines merges duplicate SKUs, keeping first-seen order
func (s *Service) resolveLines(ctx context.Context, userID int64, in PriceInput) ([]LineInput, []int64, error) {
	var raw []LineInput
	var cartIDs []int64
	switch in.Source {
	case order.SourceDirect:
		raw = in.Items
	case order.SourceCart:
		selected, err := s.carts.ListSelected(ctx, userID)
		if err != nil {
			return nil, nil, err
		}
		byID := make(map[int64]order.CartLine, len(selected))
		for _, c := range selected {
			byID[c.ID] = c
		}
		ids := in.CartItemIDs
		if len(ids) == 0 {
			for _, c := range selected {
				ids = append(ids, c.ID)
			}
		}
		for _, id := range ids {
			c, ok := byID[id]
			if !ok {
				return nil, nil, shared.NewNotFoundError("cart item %d not found", id)
			}
			raw = append(raw, LineInput{SkuID: c.SkuID, Quantity: c.Quantity})
			cartIDs = append(cartIDs, id)
		}
	default:
		return nil, nil, shared.NewIllegalParamError("unknown order source %q", in.Source)
	}
	if len(raw) == 0 {
		return nil, nil, shared.NewIllegalParamError("order must contain at least one item")
	}

	index := make(map[int64]int, len(raw))
	lines := make([]LineInput, 0, len(raw))
	for _, l := range raw {
		if l.SkuID <= 0 || l.Quantity < 1 {
			return nil, nil, shared.NewIllegalParamError("invalid sku %d or quantity %d", l.SkuID, l.Quantity)
		}
		if i, ok := index[l.SkuID]; ok {
			lines[i].Quantity += l.Quantity
			continue
		}
		index[l.SkuID] = len(lines)
		lines = append(lines, l)
	}
	return lines, cartIDs, nil
}

func missingPrice(snaps map[int64]order.SkuSnapshot, skuIDs []int64) bool {
	for _, id := range skuIDs {
		if snap, ok := snaps[id]; ok && snap.UnitPriceMinor == nil {
			return true
		}
	}
	return false
}

func allowedAttachmentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "image/") || ct == "application/pdf" || strings.HasPrefix(ct, "video/")
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	name = strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_")
	if len(name) > maxFileNameLength {
		name = name[len(name)-maxFileNameLength:]
	}
	return name
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	return min(limit, maxBatch)
}
