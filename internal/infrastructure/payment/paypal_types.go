package payment

import "encoding/json"

// paypalErrorResponse is the error body of the REST API
type paypalErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
	// OAuth errors use a different shape
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type paypalPurchaseUnitRequest struct {
	ReferenceID string       `json:"reference_id,omitempty"`
	Amount      paypalAmount `json:"amount"`
}

type paypalApplicationContext struct {
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	UserAction string `json:"user_action,omitempty"`
}

type paypalCreateOrderRequest struct {
	Intent             string                      `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnitRequest `json:"purchase_units"`
	ApplicationContext paypalApplicationContext    `json:"application_context"`
}

type paypalCapture struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	CreateTime string        `json:"create_time,omitempty"`
	Amount     *paypalAmount `json:"amount,omitempty"`
}

type paypalPurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Payments    *struct {
		Captures []paypalCapture `json:"captures"`
	} `json:"payments,omitempty"`
}

// paypalOrderResponse covers create, show and capture responses
type paypalOrderResponse struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
	Links         []paypalLink         `json:"links"`
}

type paypalRefundRequest struct {
	Amount      paypalAmount `json:"amount"`
	NoteToPayer string       `json:"note_to_payer,omitempty"`
}

type paypalRefundResponse struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Amount *paypalAmount `json:"amount,omitempty"`
}

type paypalVerifySignatureRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type paypalVerifySignatureResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// paypalWebhookEnvelope is the outer shape of every notification
type paypalWebhookEnvelope struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	CreateTime   string          `json:"create_time"`
	Resource     json.RawMessage `json:"resource"`
}

// paypalWebhookResource holds the resource fields read from capture, refund and order events
type paypalWebhookResource struct {
	ID                string        `json:"id"`
	Status            string        `json:"status"`
	CreateTime        string        `json:"create_time"`
	Amount            *paypalAmount `json:"amount,omitempty"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID   string `json:"order_id"`
			CaptureID string `json:"capture_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}
