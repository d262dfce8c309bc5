package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	paydomain "github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/shared"
)

// Webhook signature headers, upper-cased by the caller
const (
	HeaderTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	HeaderTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
	HeaderTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	HeaderCertURL          = "PAYPAL-CERT-URL"
	HeaderAuthAlgo         = "PAYPAL-AUTH-ALGO"
)

const webhookEnvelopeSchemaURL = "https://schemas.intlshop.local/paypal/webhook-envelope.json"

const webhookEnvelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "event_type", "resource"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "event_type": {"type": "string", "minLength": 1},
    "resource_type": {"type": "string"},
    "create_time": {"type": "string"},
    "resource": {"type": "object"}
  }
}`

var envelopeSchema = compileEnvelopeSchema()

func compileEnvelopeSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(webhookEnvelopeSchemaURL, strings.NewReader(webhookEnvelopeSchema)); err != nil {
		panic(fmt.Sprintf("paypal: webhook schema load failed: %v", err))
	}
	return c.MustCompile(webhookEnvelopeSchemaURL)
}

// VerifyWebhookAndReplayProtection validates the envelope, checks the
// transmission time against the allowed skew, asks PayPal to verify the
// signature and finally records the event id. fresh is false when the id was
// already recorded within the replay window.
func (a *PayPalAdapter) VerifyWebhookAndReplayProtection(ctx context.Context, headers map[string]string, body []byte) (paydomain.WebhookEvent, bool, error) {
	sig, err := signatureHeaders(headers)
	if err != nil {
		return paydomain.WebhookEvent{}, false, err
	}

	event, err := parseWebhookEvent(body)
	if err != nil {
		return paydomain.WebhookEvent{}, false, err
	}

	sentAt, err := time.Parse(time.RFC3339Nano, sig.TransmissionTime)
	if err != nil {
		return paydomain.WebhookEvent{}, false, shared.NewIllegalParamError("paypal: malformed transmission time %q", sig.TransmissionTime)
	}
	if skew := a.clock.Now().Sub(sentAt).Abs(); skew > a.config.ClockSkew {
		return paydomain.WebhookEvent{}, false, shared.NewIllegalParamError("paypal: transmission time skew %s exceeds %s", skew, a.config.ClockSkew)
	}

	sig.WebhookID = a.config.WebhookID
	sig.WebhookEvent = json.RawMessage(body)
	var verdict paypalVerifySignatureResponse
	if err := a.doRequest(ctx, http.MethodPost, paypalPathVerifyWebhook, sig, "", &verdict); err != nil {
		return paydomain.WebhookEvent{}, false, err
	}
	if !strings.EqualFold(verdict.VerificationStatus, "SUCCESS") {
		return paydomain.WebhookEvent{}, false, shared.NewIllegalParamError("paypal: webhook signature verification %s", verdict.VerificationStatus)
	}

	// The marker is taken before processing; the caller releases it when processing fails.
	fresh, err := a.replay.MarkProcessed(ctx, event.ID, a.config.ReplayTTL)
	if err != nil {
		return paydomain.WebhookEvent{}, false, fmt.Errorf("paypal: failed to record webhook %s: %w", event.ID, err)
	}
	if !fresh {
		a.logger.Info("paypal webhook replayed",
			zap.String("event_id", event.ID),
			zap.String("transmission_id", sig.TransmissionID))
	}
	return event, fresh, nil
}

// ReleaseWebhookEvent forgets eventID so PayPal's next delivery is processed
func (a *PayPalAdapter) ReleaseWebhookEvent(ctx context.Context, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return nil
	}
	if err := a.replay.Forget(ctx, eventID); err != nil {
		return fmt.Errorf("paypal: failed to release webhook %s: %w", eventID, err)
	}
	return nil
}

// TryExtractOrderID finds the checkout order id of an event: the resource id
// for CHECKOUT.ORDER events, the related order id otherwise.
func (a *PayPalAdapter) TryExtractOrderID(event paydomain.WebhookEvent) (string, bool) {
	if len(event.Resource) == 0 {
		return "", false
	}
	var res paypalWebhookResource
	if err := json.Unmarshal(event.Resource, &res); err != nil {
		return "", false
	}
	if strings.HasPrefix(strings.ToUpper(event.EventType), "CHECKOUT.ORDER") && res.ID != "" {
		return strings.TrimSpace(res.ID), true
	}
	if id := strings.TrimSpace(res.SupplementaryData.RelatedIDs.OrderID); id != "" {
		return id, true
	}
	if id := strings.TrimSpace(res.ID); id != "" {
		return id, true
	}
	return "", false
}

func signatureHeaders(headers map[string]string) (paypalVerifySignatureRequest, error) {
	req := paypalVerifySignatureRequest{
		AuthAlgo:         strings.TrimSpace(headers[HeaderAuthAlgo]),
		CertURL:          strings.TrimSpace(headers[HeaderCertURL]),
		TransmissionID:   strings.TrimSpace(headers[HeaderTransmissionID]),
		TransmissionSig:  strings.TrimSpace(headers[HeaderTransmissionSig]),
		TransmissionTime: strings.TrimSpace(headers[HeaderTransmissionTime]),
	}
	var missing []string
	for name, v := range map[string]string{
		HeaderAuthAlgo:         req.AuthAlgo,
		HeaderCertURL:          req.CertURL,
		HeaderTransmissionID:   req.TransmissionID,
		HeaderTransmissionSig:  req.TransmissionSig,
		HeaderTransmissionTime: req.TransmissionTime,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return req, shared.NewIllegalParamError("paypal: missing webhook headers %s", strings.Join(missing, ", "))
	}
	return req, nil
}

// parseWebhookEvent validates the envelope and normalizes the event
func parseWebhookEvent(body []byte) (paydomain.WebhookEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return paydomain.WebhookEvent{}, shared.NewIllegalParamError("paypal: webhook body is not JSON")
	}
	if err := envelopeSchema.Validate(doc); err != nil {
		return paydomain.WebhookEvent{}, shared.NewIllegalParamError("paypal: invalid webhook envelope: %v", err)
	}

	var env paypalWebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return paydomain.WebhookEvent{}, shared.NewIllegalParamError("paypal: invalid webhook envelope: %v", err)
	}
	canonical, err := jcs.Transform(body)
	if err != nil {
		return paydomain.WebhookEvent{}, shared.NewIllegalParamError("paypal: webhook body is not canonicalizable: %v", err)
	}
	sum := sha256.Sum256(canonical)

	event := paydomain.WebhookEvent{
		ID:           env.ID,
		EventType:    strings.ToUpper(env.EventType),
		ResourceType: strings.ToLower(env.ResourceType),
		CreateTime:   parseTime(env.CreateTime),
		Resource:     env.Resource,
		Payload:      canonical,
		Digest:       hex.EncodeToString(sum[:]),
	}

	var res paypalWebhookResource
	if err := json.Unmarshal(env.Resource, &res); err != nil {
		return paydomain.WebhookEvent{}, shared.NewIllegalParamError("paypal: invalid webhook resource: %v", err)
	}
	switch {
	case event.ResourceType == "refund":
		event.RefundID = res.ID
		event.RefundStatus = res.Status
		if res.Amount != nil {
			event.RefundValue = res.Amount.Value
			event.RefundCurrency = res.Amount.CurrencyCode
		}
		event.CaptureID = res.SupplementaryData.RelatedIDs.CaptureID
	case event.ResourceType == "capture" || strings.HasPrefix(event.EventType, "PAYMENT.CAPTURE."):
		event.CaptureID = res.ID
		event.CaptureStatus = res.Status
		if t := parseTime(res.CreateTime); t != nil {
			event.CreateTime = t
		}
	}
	return event, nil
}
