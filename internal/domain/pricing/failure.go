package pricing

import "fmt"

// FailureReason classifies why a discount could not be applied
type FailureReason string

const (
	FailureCodeNotFound        FailureReason = "CODE_NOT_FOUND"
	FailureCodeExpired         FailureReason = "CODE_EXPIRED"
	FailurePolicyNotFound      FailureReason = "POLICY_NOT_FOUND"
	FailureAmountConfigMissing FailureReason = "AMOUNT_CONFIG_MISSING"
	FailureFxRateUnavailable   FailureReason = "FX_RATE_UNAVAILABLE"
	FailureFxRateStale         FailureReason = "FX_RATE_STALE"
	FailureNotApplicable       FailureReason = "NOT_APPLICABLE"
	FailureMinOrderNotMet      FailureReason = "MIN_ORDER_NOT_MET"
)

// Failure is a soft discount failure: the order proceeds without a discount
// and the reason is shown to the shopper.
type Failure struct {
	Reason FailureReason `json:"reason"`
	Detail string        `json:"detail"`
}

func (f Failure) String() string {
	if f.Detail == "" {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

func fail(reason FailureReason, format string, args ...any) Failure {
	return Failure{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
