package models

// RefundRationale tags the policy branch that produced a cancellation outcome.
// The legal/notification layer keys its follow-up actions off this tag.
type RefundRationale string

const (
	RationaleFullRefund              RefundRationale = "full_refund"
	RationaleOneNightPenalty         RefundRationale = "one_night_penalty"
	RationaleNoShowForfeit           RefundRationale = "no_show_forfeit"
	RationaleBuyerForfeitsDeposit    RefundRationale = "buyer_forfeits_deposit"
	RationaleSellerOwesDoubleDeposit RefundRationale = "seller_owes_double_deposit"
	RationaleBrokerageFeeRetained    RefundRationale = "brokerage_fee_retained"
)

// CancellationOutcome is the result of evaluating cancellation policy for a
// booking. It is recomputed on demand and applied exactly once by the booking
// lifecycle manager; it is never persisted as mutable state.
type CancellationOutcome struct {
	RefundAmount     float64 `json:"refund_amount"`
	ForfeitureAmount float64 `json:"forfeiture_amount"`
	// LiabilityAmount is an obligation the system records but cannot execute
	// itself, e.g. a seller owing double the deposit back to the buyer.
	LiabilityAmount float64         `json:"liability_amount,omitempty"`
	Currency        Currency        `json:"currency"`
	Rationale       RefundRationale `json:"rationale"`
}
